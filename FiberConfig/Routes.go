package FiberConfig

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"Workdesk/Commands"
	"Workdesk/Controllers"
	"Workdesk/Models"
	"Workdesk/middleware"
)

type Options struct {
	// FilesDir is served under /files when uploads are kept on disk.
	FilesDir string
	// RequestLog turns on the request and error log files.
	RequestLog bool
}

func SetupRoutes(app *fiber.App, h *Controllers.Handlers, auth *middleware.Auth) {
	signedIn := auth.Verify("")
	admin := auth.Verify(Models.RoleAdmin)

	app.Get("/health", Controllers.Health)

	api := app.Group("/api")
	api.Post("/login", h.Login)
	api.Post("/logout", h.Logout)
	api.Get("/me", signedIn, h.Me)
	api.Post("/me/push-tokens", signedIn, h.RegisterPushToken)
	api.Get("/users", signedIn, h.Users)

	// Task routes
	tasks := api.Group("/tasks", signedIn)
	tasks.Get("/", admin, h.GetTasks)
	tasks.Post("/", admin, h.CreateTasks)
	// Place these BEFORE the ID route to avoid conflicts
	tasks.Get("/mine", h.MyTasks)
	tasks.Get("/:id", h.GetTask)
	tasks.Patch("/:id", admin, h.EditTask)
	tasks.Post("/:id/submit", h.SubmitTask)
	tasks.Post("/:id/approve", admin, h.ApproveTask)
	tasks.Post("/:id/revision", admin, h.RequestRevision)
	tasks.Post("/:id/attachments", h.UploadAttachment)
	tasks.Delete("/:id/attachments", h.RemoveAttachment)

	// Attendance routes
	attendance := api.Group("/attendance", signedIn)
	attendance.Post("/clock-in", h.ClockIn)
	attendance.Post("/clock-out", h.ClockOut)
	attendance.Get("/week", h.Week)
	attendance.Get("/rows", h.AttendanceRows)
	attendance.Get("/export", h.ExportAttendance)
	attendance.Post("/:id/approve", admin, h.ApproveWorkLog)
	attendance.Post("/:id/reject", admin, h.RejectWorkLog)
	attendance.Delete("/:id", admin, h.ResetWorkLog)

	leave := api.Group("/leave", signedIn)
	leave.Get("/", h.LeaveMonth)
	leave.Post("/", h.ToggleLeave)
	leave.Get("/status", h.OnLeave)

	api.Get("/chat/:projectId/:subMenuId", signedIn, h.GetChat)
	api.Post("/chat/:projectId/:subMenuId", signedIn, h.SendMessage)
	api.Post("/chat/:projectId/:subMenuId/files", signedIn, h.SendFile)

	notifications := api.Group("/notifications", signedIn)
	notifications.Get("/", h.GetNotifications)
	notifications.Get("/stream", h.StreamNotifications)
	notifications.Delete("/", h.DeleteAllNotifications)
	notifications.Delete("/:id", h.DeleteNotification)
	notifications.Post("/:id/read", h.MarkNotificationRead)

	adminRoutes := api.Group("/admin", admin)
	adminRoutes.Delete("/notifications", h.WipeNotifications)
	adminRoutes.Get("/sync", h.SyncStatus)
	adminRoutes.Post("/sync/retry", h.RetrySync)
	adminRoutes.Get("/logs", h.GetLogs)
	adminRoutes.Get("/logs/stats", h.GetLogStats)
}

// NewApp builds the fiber app with the shared middleware and every route.
func NewApp(h *Controllers.Handlers, auth *middleware.Auth, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:    Commands.MaxUploadBytes + 1<<20,
		ReadTimeout:  2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
		ErrorHandler: errorHandler,
	})
	if opts.RequestLog {
		app.Use(middleware.RequestLogger())
		app.Use(middleware.ErrorLogger(middleware.ErrorLogPath))
	}
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c *fiber.Ctx) bool {
			// Compression buffers the event stream.
			return c.Path() == "/api/notifications/stream"
		},
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, Accept-Language, Authorization, X-Requested-With",
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if opts.FilesDir != "" {
		app.Static("/files", opts.FilesDir, fiber.Static{ByteRange: true})
	}
	SetupRoutes(app, h, auth)
	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{"message": err.Error()})
}

func FiberConfig(app *fiber.App, port string) error {
	fmt.Println("Server Up...")
	return app.Listen(":" + port)
}
