// Package remotesim is a reference implementation of the remote API the
// reconciler talks to. It backs integration tests and `kasir remote serve`
// for local development.
//
// It keeps its own authoritative store (gorm over SQLite) and implements
// the contract the terminal depends on: paged products, categories,
// transactions upserted by transaction_number, status and payment
// updates. Fault injection hooks let tests reject or fail specific calls.
package remotesim

import (
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Server is the simulated remote.
//
// Thread-safety: handlers may run concurrently; fault injection state is
// guarded by mu and the database serializes writes.
type Server struct {
	db       *gorm.DB
	app      *fiber.App
	validate *validator.Validate
	logger   *slog.Logger

	secret    []byte
	accessLog io.Writer

	mu       sync.Mutex
	rejects  map[string]string // transaction_number → message
	failNext int               // upcoming requests answered with 503
	calls    map[string]int    // route → count
}

// Option configures a Server.
type Option func(*Server)

// WithJWTSecret requires every /api request to carry an HS256 bearer
// token signed with secret (see IssueToken). Empty disables auth.
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.secret = []byte(secret)
		}
	}
}

// WithAccessLog writes one line per request to w.
func WithAccessLog(w io.Writer) Option {
	return func(s *Server) { s.accessLog = w }
}

// WithLogger sets the logger. Nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New opens (or creates) the server database at dsn, migrates it and
// builds the HTTP app.
func New(dsn string, opts ...Option) (*Server, error) {
	s := &Server{
		validate: validator.New(),
		rejects:  make(map[string]string),
		calls:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	gormLog := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Silent,
			IgnoreRecordNotFoundError: true,
		},
	)
	if s.accessLog != nil {
		gormLog = gormlogger.New(
			log.New(s.accessLog, "\r\n", log.LstdFlags),
			gormlogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		)
	}

	db, err := gorm.Open(sqlite.Open(withPragmas(dsn)), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open remote database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open remote database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Category{}, &Product{}, &Transaction{}, &TransactionItem{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate remote database: %w", err)
	}
	s.db = db
	s.app = s.routes()
	return s, nil
}

// withPragmas enables foreign keys and a busy timeout on file DSNs.
func withPragmas(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_foreign_keys=on&_busy_timeout=5000"
}

// App returns the fiber app, e.g. for adaptor.FiberApp in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops the listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Close releases the database.
func (s *Server) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Server) routes() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "kasir remote",
		DisableStartupMessage: true,
		Immutable:             true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return fail(c, code, err.Error())
		},
	})

	app.Use(recover.New())
	if s.accessLog != nil {
		app.Use(logger.New(logger.Config{Output: s.accessLog}))
	}

	api := app.Group("/api", s.faults)
	if s.secret != nil {
		api.Use(s.requireAuth)
	}

	api.Get("/products", s.listProducts)
	api.Get("/categories", s.listCategories)
	api.Post("/categories", s.createCategory)
	api.Get("/transactions", s.listTransactions)
	api.Post("/transactions", s.upsertTransaction)
	api.Patch("/transactions/:id/status", s.updateStatus)
	api.Patch("/transactions/:id/pay", s.payTransaction)
	return app
}

// Reject makes every upload of number fail with 422 and message.
func (s *Server) Reject(number, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejects[number] = message
}

// Accept clears a Reject.
func (s *Server) Accept(number string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rejects, number)
}

// FailNext answers the next n API requests with 503.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// Calls returns how many requests reached route, e.g. "POST /api/transactions".
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) rejection(number string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.rejects[number]
	return msg, ok
}

// faults counts calls and applies FailNext.
func (s *Server) faults(c *fiber.Ctx) error {
	route := c.Method() + " " + c.Path()
	s.mu.Lock()
	s.calls[route]++
	failing := s.failNext > 0
	if failing {
		s.failNext--
	}
	s.mu.Unlock()

	if failing {
		return fail(c, fiber.StatusServiceUnavailable, "service temporarily unavailable")
	}
	return c.Next()
}

func respond(c *fiber.Ctx, code int, data any, meta any) error {
	body := fiber.Map{"status": "success", "data": data}
	if meta != nil {
		body["meta"] = meta
	}
	return c.Status(code).JSON(body)
}

func fail(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(fiber.Map{"status": "error", "success": false, "message": message})
}
