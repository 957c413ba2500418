package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kadlecj/facetrack/internal/attendance"
	"github.com/kadlecj/facetrack/internal/config"
	"github.com/kadlecj/facetrack/internal/enroll"
	"github.com/kadlecj/facetrack/internal/gallery"
	"github.com/kadlecj/facetrack/internal/match"
	"github.com/kadlecj/facetrack/internal/session"
	"github.com/kadlecj/facetrack/internal/store/postgres"
	"github.com/kadlecj/facetrack/internal/vision"
)

// pipeline bundles everything a command needs to run recognition or manage
// identities: the database pool, the repositories, the in-memory gallery and
// the attendance chain.
type pipeline struct {
	cfg        *config.Config
	pool       *postgres.Pool
	identities *postgres.IdentityRepository
	events     *postgres.AttendanceRepository
	gallery    *gallery.Gallery
	matcher    *match.Matcher
	cache      *attendance.DayCache
	guard      *attendance.Guard
	recorder   *attendance.Recorder
	vision     *vision.Client
	enroll     *enroll.Service
	sessions   *session.Manager
}

// openPipeline connects to the database, runs pending migrations and loads
// the gallery from the enrolled identities.
func openPipeline(ctx context.Context) (*pipeline, error) {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.Vision.URL == "" {
		return nil, errors.New("VISION_URL environment variable is required")
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	identities := postgres.NewIdentityRepository(pool)
	events := postgres.NewAttendanceRepository(pool)

	dim := cfg.Matching.EmbeddingDim
	g := gallery.New(dim)
	if cfg.Matching.UseHNSW {
		g.EnableHNSW()
	}

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	skipped, err := g.RebuildFrom(loadCtx, identities)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("loading gallery: %w", err)
	}
	fmt.Printf("Gallery loaded with %d identities\n", g.Len())
	if len(skipped) > 0 {
		fmt.Printf("Warning: skipped %d identities with unusable encodings: %v\n", len(skipped), skipped)
	}

	cache := attendance.NewDayCache()
	guard := attendance.NewGuard(cache, events)
	recorder := attendance.NewRecorder(events, loc)
	visionClient := vision.NewClient(&cfg.Vision)
	matcher := match.New(cfg.Matching.Tolerance, dim)

	p := &pipeline{
		cfg:        cfg,
		pool:       pool,
		identities: identities,
		events:     events,
		gallery:    g,
		matcher:    matcher,
		cache:      cache,
		guard:      guard,
		recorder:   recorder,
		vision:     visionClient,
		enroll:     enroll.NewService(identities, visionClient, g, cache, dim),
	}
	p.sessions = session.NewManager(session.ManagerConfig{
		Gallery:  g,
		Matcher:  matcher,
		Guard:    guard,
		Recorder: recorder,
		Detector: visionClient,
		Camera:   cfg.Camera,
		Dim:      dim,
	})
	return p, nil
}

func (p *pipeline) Close() {
	if err := p.pool.Close(); err != nil {
		fmt.Printf("Warning: closing database pool: %v\n", err)
	}
}
