package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kadlecj/facetrack/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	identitiesHandler := handlers.NewIdentitiesHandler(s.deps.Enroll, s.deps.Identities)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Events, s.deps.Identities, s.deps.Guard, s.deps.Recorder)
	sessionHandler := handlers.NewSessionHandler(s.deps.Sessions)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Identities
		r.Get("/identities", identitiesHandler.List)
		r.Post("/identities", identitiesHandler.Enroll)
		r.Get("/identities/{id}", identitiesHandler.Get)
		r.Put("/identities/{id}", identitiesHandler.Update)
		r.Delete("/identities/{id}", identitiesHandler.Delete)
		r.Post("/identities/{id}/retake", identitiesHandler.Retake)
		r.Get("/identities/{id}/attendance", attendanceHandler.ByIdentity)

		// Attendance
		r.Post("/attendance", attendanceHandler.Mark)
		r.Get("/attendance/today", attendanceHandler.Today)
		r.Get("/attendance/day/{day}", attendanceHandler.ByDay)
		r.Get("/attendance/recent", attendanceHandler.Recent)
		r.Get("/attendance/stats", attendanceHandler.Stats)

		// Session control and live feedback
		r.Get("/session", sessionHandler.Status)
		r.Post("/session/start", sessionHandler.Start)
		r.Post("/session/stop", sessionHandler.Stop)
		r.Get("/session/events", sessionHandler.Events)
	})
}
