package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoospeak-interview/internal/api/handlers"
	"github.com/yoockh/yoospeak-interview/internal/api/middleware"
)

type Deps struct {
	Auth      middleware.AuthConfig
	Interview *handlers.InterviewHandler
	WS        *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.Auth))

	iv := auth.Group("/interviews/:interview_id")
	iv.POST("/session", d.Interview.Open)
	iv.GET("/session", d.Interview.Get)
	iv.DELETE("/session", d.Interview.Close)
	iv.POST("/session/record/start", d.Interview.StartRecording)
	iv.POST("/session/record/stop", d.Interview.StopRecording)
	iv.PUT("/session/draft", d.Interview.SetDraft)
	iv.POST("/session/answer", d.Interview.SubmitAnswer)
	iv.POST("/session/speak", d.Interview.Speak)
	iv.GET("/answers", d.Interview.Answers)

	// WebSocket
	auth.GET("/ws/interviews/:interview_id", d.WS.InterviewWS)
}
