package characters

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// GenerationOptions 记录创建角色时选定的生成参数,创建后不再修改。
type GenerationOptions struct {
	Race       string `json:"race,omitempty"`
	Class      string `json:"class,omitempty"`
	Mood       string `json:"mood,omitempty"`
	Background string `json:"background,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Style      string `json:"style,omitempty"`
}

// IsZero 判断是否没有任何选项被选中。
func (o GenerationOptions) IsZero() bool {
	return strings.TrimSpace(o.Race) == "" &&
		strings.TrimSpace(o.Class) == "" &&
		strings.TrimSpace(o.Mood) == "" &&
		strings.TrimSpace(o.Background) == "" &&
		strings.TrimSpace(o.Gender) == "" &&
		strings.TrimSpace(o.Style) == ""
}

// Character 表示一次生成得到的角色头像及其元数据。
type Character struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	Name      string         `gorm:"size:100;not null" json:"name"`
	Options   datatypes.JSON `gorm:"type:json" json:"options,omitempty"`
	Details   string         `gorm:"type:text" json:"details"`
	Traits    string         `gorm:"type:text;not null" json:"traits"`
	ImageURL  string         `gorm:"size:512;not null" json:"image_url"`
	ThumbURL  *string        `gorm:"size:512" json:"thumb_url,omitempty"`
	Quote     *string        `gorm:"type:text" json:"quote,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName 指定 Character 模型对应的数据库表名。
func (Character) TableName() string {
	return "characters"
}

// OptionsData 解析存储的生成参数,内容缺失或损坏时返回零值。
func (ch *Character) OptionsData() GenerationOptions {
	var opts GenerationOptions
	if ch == nil || len(ch.Options) == 0 {
		return opts
	}
	_ = json.Unmarshal(ch.Options, &opts)
	return opts
}

// encodeOptions 将生成参数序列化为 JSON 列的存储形式。
func encodeOptions(opts GenerationOptions) (datatypes.JSON, error) {
	raw, err := json.Marshal(opts)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
