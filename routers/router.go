package routers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/studify-app/studify_backend/controllers"
	"github.com/studify-app/studify_backend/middlewares"
)

func SetupRoutes(app *fiber.App) {

	api := app.Group("/api")
	api.Get("/", controllers.Index)

	//Auth
	auth := api.Group("/auth")
	auth.Post("/users", controllers.CreateUser)
	auth.Get("/users", middlewares.Protected(), controllers.GetUserDetails)
	auth.Post("/login", controllers.LoginUser)
	auth.Get("/google-login", controllers.GoogleLogin)
	auth.Get("/google-callback", controllers.GoogleCallback)

	templates := api.Group("/templates")
	templates.Post("/", middlewares.Protected(), controllers.CreateTemplate)
	templates.Get("/", controllers.GetTemplates)
	templates.Get("/:id", controllers.GetTemplateByID)
	templates.Delete("/:id", middlewares.Protected(), controllers.DeactivateTemplate)

	questions := api.Group("/questions")
	questions.Post("/", middlewares.Protected(), controllers.CreateQuestions)
	questions.Get("/", middlewares.Protected(), controllers.GetQuestions)

	attempts := api.Group("/attempts")
	attempts.Post("/", middlewares.Protected(), controllers.StartAttempt)
	attempts.Get("/", middlewares.Protected(), controllers.ListAttempts)
	attempts.Get("/history", middlewares.Protected(), controllers.GetAttemptHistory)
	attempts.Post("/calculate-results", middlewares.Protected(), controllers.CalculateResults)
	attempts.Post("/complete", middlewares.Protected(), controllers.CompleteAttempt)
	attempts.Get("/:attempt_id", middlewares.Protected(), controllers.GetAttempt)
	attempts.Patch("/:attempt_id", middlewares.Protected(), controllers.UpdateAttempt)
	attempts.Delete("/:attempt_id", middlewares.Protected(), controllers.DeleteAttempt)
	attempts.Post("/:attempt_id/responses", middlewares.Protected(), controllers.RecordResponse)

	schedule := api.Group("/schedule")
	schedule.Post("/", middlewares.Protected(), controllers.CreateStudyBlock)
	schedule.Get("/", middlewares.Protected(), controllers.GetStudyBlocks)
	schedule.Put("/:id", middlewares.Protected(), controllers.UpdateStudyBlock)
	schedule.Delete("/:id", middlewares.Protected(), controllers.DeleteStudyBlock)

	bookmarks := api.Group("/bookmarks")
	bookmarks.Post("/", middlewares.Protected(), controllers.CreateBookmark)
	bookmarks.Get("/", middlewares.Protected(), controllers.GetAllBookmarks)
	bookmarks.Delete("/:qid", middlewares.Protected(), controllers.RemoveBookmark)

	ai := api.Group("/ai")
	ai.Post("/explanations", middlewares.Protected(), controllers.GenerateExplanation)

	app.Use(middlewares.NotFound)
}
