package http

import (
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/anonsocial/anon/internal/ws"
)

// SetupRoutes configures all routes and middleware.
func SetupRoutes(router *gin.Engine, db *gorm.DB, hub *ws.Hub) {
	env := &Env{DB: db, Hub: hub}

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	corsOrigin := os.Getenv("CORS_ORIGIN")
	if corsOrigin == "" {
		corsOrigin = "http://localhost:3000"
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{corsOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	limiter := NewIPRateLimiter(rate.Limit(rateLimitRPS), rateLimitBurst)
	go func() {
		for {
			time.Sleep(10 * time.Minute)
			limiter.cleanup()
		}
	}()

	auth := router.Group("/auth")
	{
		auth.POST("/dev-login", env.DevLogin)
		auth.POST("/logout", env.Logout)
	}

	users := router.Group("/users")
	{
		users.GET("/user/:username", env.GetUser)
		users.GET("/me", env.AuthRequired(), env.Me)
		users.PATCH("/me/username", env.AuthRequired(), env.SetUsername)
		users.PATCH("/me/bio", env.AuthRequired(), env.SetBio)
	}

	posts := router.Group("/posts", env.AuthRequired())
	{
		posts.GET("/", env.GetPosts)
		posts.GET("/user/:username", env.GetUserPosts)
		posts.POST("/", RateLimitMiddleware(limiter), env.CreatePost)
		posts.DELETE("/:id", env.DeletePost)
		posts.PUT("/:id/vote", env.SetVote)
		posts.DELETE("/:id/vote", env.RemoveVote)
	}

	referral := router.Group("/referral")
	{
		referral.GET("/me", env.AuthRequired(), env.ReferralMe)
		referral.POST("/generate", env.AuthRequired(), env.ReferralGenerate)
		referral.GET("/validate/:code", env.ReferralValidate)
	}

	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(hub, c.Writer, c.Request)
	})
}
