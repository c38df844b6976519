package main

import (
	"log"
	"net/http"
	"os"

	"chargen_back/characters"
	"chargen_back/gate"
	"chargen_back/web"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func mustLoadEnv() {
	_ = godotenv.Load()
}

func main() {
	mustLoadEnv()

	r := gin.Default()
	r.Use(cors.Default())
	r.SetHTMLTemplate(web.Templates())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/robots.txt", func(c *gin.Context) {
		c.String(http.StatusOK, "User-agent: *\nDisallow: /\n")
	})

	guard, err := gate.NewTokenGuardFromEnv()
	if err != nil {
		log.Fatalf("init token guard: %v", err)
	}

	if _, err := characters.RegisterRoutes(r, guard); err != nil {
		log.Fatalf("register character routes: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("start server: %v", err)
	}
}
