package characters

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("characters: character not found")
	ErrValidation = errors.New("characters: invalid input")
	ErrGeneration = errors.New("characters: generation failed")
	ErrStorage    = errors.New("characters: storage failed")
)

// 角色台词追加进描述时使用的分隔串。
const quoteSeparator = "\n\n"

// ImageGenerator 抽象图像生成接口,由 genai 客户端实现。
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// TextGenerator 抽象文本生成接口,由 genai 客户端实现。
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// PortraitStore 抽象头像对象存储接口,由 storage 模块实现。
type PortraitStore interface {
	UploadPortrait(ctx context.Context, img []byte) (imageURL, thumbURL string, err error)
	Remove(ctx context.Context, rawURL string) error
}

// Service 负责角色的完整生命周期:构建提示词、调用生成与存储、
// 读写数据库记录。生成流程固定为 提示词 -> 图像字节 -> 存储地址 -> 入库
// 三步,任何一步失败都会以独立的哨兵错误返回且不产生半成品记录。
type Service struct {
	db        *gorm.DB
	generator ImageGenerator
	quotes    TextGenerator
	portraits PortraitStore
}

// NewService 组装角色服务及其外部依赖。
func NewService(db *gorm.DB, generator ImageGenerator, quotes TextGenerator, portraits PortraitStore) *Service {
	return &Service{db: db, generator: generator, quotes: quotes, portraits: portraits}
}

// CreateInput 描述一次创建请求携带的全部字段。
type CreateInput struct {
	Name    string
	Options GenerationOptions
	Details string
	Traits  string
}

// UpdateInput 描述部分更新请求,nil 字段保持原值不变。
type UpdateInput struct {
	Name    *string
	Details *string
	Traits  *string
}

// DeleteResult 记录删除操作两个阶段的结果:数据库删除必须成功,
// 对象删除尽力而为,失败只记录不影响整体结果。
type DeleteResult struct {
	BlobRemoved bool
}

// Create 校验输入后依次执行图像生成、对象上传与记录插入,
// 任何一步失败都不会留下新记录。插入失败时已上传的对象不做回滚。
func (s *Service) Create(ctx context.Context, in CreateInput) (*Character, error) {
	rawName := strings.TrimSpace(in.Name)
	details := strings.TrimSpace(in.Details)

	traits := strings.TrimSpace(in.Traits)
	if traits == "" {
		traits = composeTraits(in.Options, details)
	}
	if traits == "" {
		return nil, fmt.Errorf("%w: traits are required", ErrValidation)
	}

	optionsJSON, err := encodeOptions(in.Options)
	if err != nil {
		return nil, fmt.Errorf("%w: encode options: %v", ErrValidation, err)
	}

	prompt := buildPortraitPrompt(traits, rawName)

	img, err := s.generator.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	imageURL, thumbURL, err := s.portraits.UploadPortrait(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	name := rawName
	if name == "" {
		name = "Unnamed"
	}

	now := time.Now().UTC()
	character := &Character{
		ID:        uuid.NewString(),
		Name:      name,
		Options:   optionsJSON,
		Details:   details,
		Traits:    traits,
		ImageURL:  imageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if thumbURL != "" {
		character.ThumbURL = &thumbURL
	}

	if err := s.db.WithContext(ctx).Create(character).Error; err != nil {
		return nil, fmt.Errorf("characters: insert character: %w", err)
	}

	return character, nil
}

// Get 按 ID 加载单个角色。
func (s *Service) Get(ctx context.Context, id string) (*Character, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, ErrNotFound
	}

	var character Character
	if err := s.db.WithContext(ctx).First(&character, "id = ?", trimmed).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("characters: load character: %w", err)
	}
	return &character, nil
}

// List 返回全部角色,按创建时间倒序。
func (s *Service) List(ctx context.Context) ([]Character, error) {
	var list []Character
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("characters: list characters: %w", err)
	}
	return list, nil
}

// Update 执行部分更新:给定的字段整体覆盖原值,未给定的字段不动,
// 任何实际变更都会刷新 updated_at。
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Character, error) {
	character, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrValidation)
		}
		character.Name = name
		updates["name"] = name
	}
	if in.Details != nil {
		details := strings.TrimSpace(*in.Details)
		character.Details = details
		updates["details"] = details
	}
	if in.Traits != nil {
		traits := strings.TrimSpace(*in.Traits)
		character.Traits = traits
		updates["traits"] = traits
	}

	if len(updates) == 0 {
		return character, nil
	}

	now := time.Now().UTC()
	updates["updated_at"] = now
	if err := s.db.WithContext(ctx).Model(&Character{}).Where("id = ?", character.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("characters: update character: %w", err)
	}
	character.UpdatedAt = now

	return character, nil
}

// Regenerate 依据角色当前的特征与描述重新生成头像并整体替换 image_url,
// 生成或上传失败时记录保持原样。旧图不删除,交由存储自身的生命周期策略处理。
func (s *Service) Regenerate(ctx context.Context, id string) (*Character, error) {
	character, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	traits := strings.TrimSpace(character.Traits)
	if traits == "" {
		traits = composeTraits(character.OptionsData(), character.Details)
	}
	prompt := buildRegenPrompt(traits, character.Details)

	img, err := s.generator.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	imageURL, thumbURL, err := s.portraits.UploadPortrait(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	var thumbPtr *string
	if thumbURL != "" {
		thumbPtr = &thumbURL
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"image_url":  imageURL,
		"thumb_url":  thumbPtr,
		"updated_at": now,
	}
	if err := s.db.WithContext(ctx).Model(&Character{}).Where("id = ?", character.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("characters: update character image: %w", err)
	}

	character.ImageURL = imageURL
	character.ThumbURL = thumbPtr
	character.UpdatedAt = now

	return character, nil
}

// Delete 先删除数据库记录,再尽力删除关联的头像对象。
// 对象删除失败只记录日志,不影响删除操作的成功结果。
func (s *Service) Delete(ctx context.Context, id string) (DeleteResult, error) {
	character, err := s.Get(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}

	if err := s.db.WithContext(ctx).Delete(&Character{}, "id = ?", character.ID).Error; err != nil {
		return DeleteResult{}, fmt.Errorf("characters: delete character: %w", err)
	}

	result := DeleteResult{BlobRemoved: true}
	if err := s.portraits.Remove(ctx, character.ImageURL); err != nil {
		log.Printf("characters: remove portrait for %s failed: %v", character.ID, err)
		result.BlobRemoved = false
	}
	if character.ThumbURL != nil && *character.ThumbURL != "" {
		if err := s.portraits.Remove(ctx, *character.ThumbURL); err != nil {
			log.Printf("characters: remove thumbnail for %s failed: %v", character.ID, err)
			result.BlobRemoved = false
		}
	}

	return result, nil
}

// GenerateQuote 生成一句角色台词并追加进描述,返回值是台词本身而非完整描述。
// 生成失败时描述保持不变。
func (s *Service) GenerateQuote(ctx context.Context, id string) (string, error) {
	character, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	quote, err := s.quotes.GenerateText(ctx, buildQuotePrompt(character))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	quote = strings.TrimSpace(quote)
	if quote == "" {
		return "", fmt.Errorf("%w: empty quote returned", ErrGeneration)
	}

	details := character.Details
	if details != "" {
		details += quoteSeparator
	}
	details += quote

	now := time.Now().UTC()
	updates := map[string]any{
		"details":    details,
		"quote":      quote,
		"updated_at": now,
	}
	if err := s.db.WithContext(ctx).Model(&Character{}).Where("id = ?", character.ID).Updates(updates).Error; err != nil {
		return "", fmt.Errorf("characters: persist quote: %w", err)
	}

	return quote, nil
}
