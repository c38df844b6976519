package gate

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

var ErrTokenMissing = errors.New("gate: CHARGEN_TOKEN environment variable is required")

// TokenGuard 持有注入的共享令牌并保护所有受限路由。
// 无会话、无用户身份,整个应用共用一个密钥。
type TokenGuard struct {
	token string
}

// NewTokenGuard 根据给定令牌构建守卫。
func NewTokenGuard(token string) (*TokenGuard, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, ErrTokenMissing
	}
	return &TokenGuard{token: trimmed}, nil
}

// NewTokenGuardFromEnv 从 CHARGEN_TOKEN 环境变量构建守卫,缺失时直接失败。
func NewTokenGuardFromEnv() (*TokenGuard, error) {
	return NewTokenGuard(os.Getenv("CHARGEN_TOKEN"))
}

// ExtractToken 按固定优先级提取请求令牌:
// 先读 Authorization: Bearer 头,缺失时回落到 ?t= 查询参数。
func ExtractToken(r *http.Request) string {
	if r == nil {
		return ""
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header != "" {
		parts := strings.Fields(header)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	return strings.TrimSpace(r.URL.Query().Get("t"))
}

// Matches 以常数时间比较候选令牌,空令牌一律视为不匹配。
func (g *TokenGuard) Matches(candidate string) bool {
	if g == nil || g.token == "" || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(g.token), []byte(candidate)) == 1
}

// Require 返回校验共享令牌的 gin 中间件,校验失败时短路并返回 401,
// 不会调用后续任何处理逻辑。
func (g *TokenGuard) Require() gin.HandlerFunc {
	if g == nil || g.token == "" {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		}
	}

	return func(c *gin.Context) {
		if !g.Matches(ExtractToken(c.Request)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
