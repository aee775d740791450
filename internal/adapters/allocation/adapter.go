// Package allocation polls the legacy hospital SQL Server that originates
// patient assignments and diagnostic image uploads, and normalizes its rows
// into platform records. Upstream row identity is preserved through
// deterministic IDs, so re-reading the same row is harmless.
package allocation

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/rs/zerolog/log"

	"github.com/teleatencion/platform/internal/shared/config"
)

// AssignmentRow is a raw allocation row from the upstream assignments table
type AssignmentRow struct {
	SourceID        string    `json:"source_id"`
	ProviderID      string    `json:"provider_id"`
	PatientDocument string    `json:"patient_document"`
	PatientName     string    `json:"patient_name"`
	AssignedAt      time.Time `json:"assigned_at"`
	Facility        string    `json:"facility"`
	BagCode         string    `json:"bag_code"`
}

// ImageRow is a raw upload row from the upstream images table. The same
// SourceID reappears when a facility re-uploads after a rejection, with a
// new storage path.
type ImageRow struct {
	SourceID        string    `json:"source_id"`
	PatientDocument string    `json:"patient_document"`
	ModalityCode    string    `json:"modality_code"`
	StoragePath     string    `json:"storage_path"`
	CapturedAt      time.Time `json:"captured_at"`
}

// AssignmentHandler is called for each new upstream assignment row
type AssignmentHandler func(ctx context.Context, row AssignmentRow)

// ImageHandler is called for each new or re-uploaded upstream image row
type ImageHandler func(ctx context.Context, row ImageRow)

// Config holds allocation adapter configuration
type Config struct {
	config.AllocationConfig

	AssignmentTable string
	ImageTable      string
	EventBufferSize int
}

// DefaultConfig returns polling defaults for the upstream HIS tables
func DefaultConfig(base config.AllocationConfig) Config {
	return Config{
		AllocationConfig: base,
		AssignmentTable:  "dbo.teleconsulta_asignaciones",
		ImageTable:       "dbo.teleconsulta_imagenes",
		EventBufferSize:  1000,
	}
}

// Adapter polls the upstream tables and fans rows out to handlers
type Adapter struct {
	db     *sql.DB
	config Config

	assignmentChan chan AssignmentRow
	imageChan      chan ImageRow

	running  bool
	mu       sync.RWMutex
	cancel   context.CancelFunc
	lastPoll time.Time
	wg       sync.WaitGroup
}

// New creates a new allocation adapter
func New(cfg Config) *Adapter {
	return &Adapter{
		config:         cfg,
		assignmentChan: make(chan AssignmentRow, cfg.EventBufferSize),
		imageChan:      make(chan ImageRow, cfg.EventBufferSize),
	}
}

// Start opens the upstream connection and starts the poll loop
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("adapter already running")
	}

	db, err := sql.Open("sqlserver", a.config.DSN())
	if err != nil {
		return fmt.Errorf("failed to open upstream database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping upstream database: %w", err)
	}

	a.db = db
	a.running = true
	a.lastPoll = time.Now().Add(-a.config.PollInterval)

	pollCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go a.pollLoop(pollCtx)

	return nil
}

// Stop stops polling and closes the upstream connection
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	close(a.assignmentChan)
	close(a.imageChan)

	if a.db != nil {
		a.db.Close()
	}

	a.running = false
	return nil
}

// Health checks upstream connectivity
func (a *Adapter) Health(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.running {
		return fmt.Errorf("adapter not running")
	}

	return a.db.PingContext(ctx)
}

// IsConnected returns connection status
func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running && a.db != nil
}

// SubscribeAssignments registers a handler for new assignment rows
func (a *Adapter) SubscribeAssignments(ctx context.Context, handler AssignmentHandler) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case row, ok := <-a.assignmentChan:
				if !ok {
					return
				}
				handler(ctx, row)
			}
		}
	}()
}

// SubscribeImages registers a handler for new image upload rows
func (a *Adapter) SubscribeImages(ctx context.Context, handler ImageHandler) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case row, ok := <-a.imageChan:
				if !ok {
					return
				}
				handler(ctx, row)
			}
		}
	}()
}

func (a *Adapter) pollLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			lastPoll := a.lastPoll
			a.lastPoll = time.Now()
			a.mu.Unlock()

			if err := a.pollAssignments(ctx, lastPoll); err != nil {
				log.Warn().Err(err).Msg("failed to poll upstream assignments")
			}
			if err := a.pollImages(ctx, lastPoll); err != nil {
				log.Warn().Err(err).Msg("failed to poll upstream images")
			}
		}
	}
}

// pollAssignments checks for assignment rows allocated since lastPoll
func (a *Adapter) pollAssignments(ctx context.Context, since time.Time) error {
	query := fmt.Sprintf(`
		SELECT
			id_asignacion,
			id_profesional,
			num_documento,
			nombre_paciente,
			fecha_asignacion,
			establecimiento,
			bolsa
		FROM %s
		WHERE fecha_asignacion > @since
		ORDER BY fecha_asignacion ASC
	`, a.config.AssignmentTable)

	rows, err := a.db.QueryContext(ctx, query, sql.Named("since", since))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var row AssignmentRow
		var name, facility sql.NullString

		err := rows.Scan(
			&row.SourceID,
			&row.ProviderID,
			&row.PatientDocument,
			&name,
			&row.AssignedAt,
			&facility,
			&row.BagCode,
		)
		if err != nil {
			log.Warn().Err(err).Msg("failed to scan upstream assignment row")
			continue
		}

		if name.Valid {
			row.PatientName = name.String
		}
		if facility.Valid {
			row.Facility = facility.String
		}

		select {
		case a.assignmentChan <- row:
		default:
			log.Warn().Str("source_id", row.SourceID).Msg("assignment buffer full, row dropped until next poll")
		}
	}

	return rows.Err()
}

// pollImages checks for image rows uploaded or re-uploaded since lastPoll
func (a *Adapter) pollImages(ctx context.Context, since time.Time) error {
	query := fmt.Sprintf(`
		SELECT
			id_imagen,
			num_documento,
			tipo_examen,
			ruta_archivo,
			fecha_captura
		FROM %s
		WHERE fecha_carga > @since
		ORDER BY fecha_carga ASC
	`, a.config.ImageTable)

	rows, err := a.db.QueryContext(ctx, query, sql.Named("since", since))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var row ImageRow

		err := rows.Scan(
			&row.SourceID,
			&row.PatientDocument,
			&row.ModalityCode,
			&row.StoragePath,
			&row.CapturedAt,
		)
		if err != nil {
			log.Warn().Err(err).Msg("failed to scan upstream image row")
			continue
		}

		select {
		case a.imageChan <- row:
		default:
			log.Warn().Str("source_id", row.SourceID).Msg("image buffer full, row dropped until next poll")
		}
	}

	return rows.Err()
}
