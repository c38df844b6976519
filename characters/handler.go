package characters

import (
	"errors"
	"net/http"
	"strings"

	"chargen_back/gate"
	"chargen_back/genai"
	filestore "chargen_back/storage"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Module 聚合了角色模块的数据库与生成、存储依赖。
type Module struct {
	db  *gorm.DB
	svc *Service
}

// RegisterRoutes 初始化角色模块并注册所有相关路由。
func RegisterRoutes(router *gin.Engine, guard *gate.TokenGuard) (*Module, error) {
	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Character{}); err != nil {
		return nil, err
	}

	client, err := genai.NewClientFromEnv()
	if err != nil {
		return nil, err
	}

	portraits, err := filestore.NewPortraitStorageFromEnv()
	if err != nil {
		return nil, err
	}

	module := &Module{db: db, svc: NewService(db, client, client, portraits)}
	module.mountRoutes(router, guard)

	return module, nil
}

// mountRoutes 将全部受令牌保护的路由挂到路由器上。
func (m *Module) mountRoutes(router *gin.Engine, guard *gate.TokenGuard) {
	protected := router.Group("", guard.Require())
	protected.GET("/", m.handleGeneratePage)
	protected.POST("/generate", m.handleGenerate)
	protected.GET("/characters", m.handleListCharacters)
	protected.GET("/c/:id", m.handleCharacterPage)

	api := protected.Group("/api/character")
	api.POST("/:id", m.handleUpdateCharacter)
	api.POST("/:id/regenerate", m.handleRegenerate)
	api.POST("/:id/delete", m.handleDeleteCharacter)
	api.POST("/:id/quote", m.handleGenerateQuote)
}

// Service 暴露底层服务,便于其它模块复用。
func (m *Module) Service() *Service {
	if m == nil {
		return nil
	}
	return m.svc
}

// respondServiceError 将服务层的哨兵错误映射为对应的 HTTP 状态码。
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
	case errors.Is(err, ErrGeneration):
		c.JSON(http.StatusBadGateway, gin.H{"error": "generation failed", "details": err.Error()})
	case errors.Is(err, ErrStorage):
		c.JSON(http.StatusBadGateway, gin.H{"error": "storage failed", "details": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "details": err.Error()})
	}
}

// wantsHTML 根据 Accept 头判断客户端是否期望 HTML 页面。
func wantsHTML(c *gin.Context) bool {
	accept := strings.ToLower(strings.TrimSpace(c.GetHeader("Accept")))
	return accept == "" || strings.Contains(accept, "text/html")
}

// tokenForLinks 透传 ?t= 查询令牌,页面内部链接依赖它保持可用。
func tokenForLinks(c *gin.Context) string {
	return c.Query("t")
}

type generateRequest struct {
	Name       string `json:"name"`
	Race       string `json:"race"`
	Class      string `json:"class"`
	Mood       string `json:"mood"`
	Background string `json:"background"`
	Gender     string `json:"gender"`
	Style      string `json:"style"`
	Details    string `json:"details"`
	Traits     string `json:"traits"`
}

// handleGenerate 创建新角色:生成图像、上传存储并落库。
func (m *Module) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	character, err := m.svc.Create(c.Request.Context(), CreateInput{
		Name: req.Name,
		Options: GenerationOptions{
			Race:       strings.TrimSpace(req.Race),
			Class:      strings.TrimSpace(req.Class),
			Mood:       strings.TrimSpace(req.Mood),
			Background: strings.TrimSpace(req.Background),
			Gender:     strings.TrimSpace(req.Gender),
			Style:      strings.TrimSpace(req.Style),
		},
		Details: req.Details,
		Traits:  req.Traits,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"character": character})
}

// handleGeneratePage 渲染生成页。
func (m *Module) handleGeneratePage(c *gin.Context) {
	c.HTML(http.StatusOK, "generate.tmpl", gin.H{
		"Token": tokenForLinks(c),
	})
}

// handleListCharacters 返回全部角色,按创建时间倒序;
// 浏览器访问时渲染列表页,其余返回 JSON 数组。
func (m *Module) handleListCharacters(c *gin.Context) {
	list, err := m.svc.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if wantsHTML(c) {
		c.HTML(http.StatusOK, "characters_list.tmpl", gin.H{
			"Characters": list,
			"Token":      tokenForLinks(c),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"characters": list})
}

// handleCharacterPage 返回单个角色详情。
func (m *Module) handleCharacterPage(c *gin.Context) {
	character, err := m.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if wantsHTML(c) {
		c.HTML(http.StatusOK, "character_detail.tmpl", gin.H{
			"Character": character,
			"Options":   character.OptionsData(),
			"Token":     tokenForLinks(c),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"character": character})
}

type updateRequest struct {
	Name    *string `json:"name"`
	Details *string `json:"details"`
	Traits  *string `json:"traits"`
}

// handleUpdateCharacter 执行部分更新,未出现的字段保持不变。
func (m *Module) handleUpdateCharacter(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	character, err := m.svc.Update(c.Request.Context(), c.Param("id"), UpdateInput{
		Name:    req.Name,
		Details: req.Details,
		Traits:  req.Traits,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"character": character})
}

// handleRegenerate 重新生成角色头像并整体替换图像地址。
func (m *Module) handleRegenerate(c *gin.Context) {
	character, err := m.svc.Regenerate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"character": character})
}

// handleDeleteCharacter 删除角色记录并尽力清理对象存储。
func (m *Module) handleDeleteCharacter(c *gin.Context) {
	result, err := m.svc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "blob_removed": result.BlobRemoved})
}

// handleGenerateQuote 生成一句角色台词并追加进描述。
func (m *Module) handleGenerateQuote(c *gin.Context) {
	quote, err := m.svc.GenerateQuote(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quote": quote})
}
