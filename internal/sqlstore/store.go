// Package sqlstore is the relational content and project store.
//
// Saved content rows and their analyses are read for candidate retrieval;
// projects carry their stored intent analysis. Every query runs on a
// dedicated connection with bounded retry on transient connection errors.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/goccy/go-json"

	"github.com/mfenderov/bam-rec/pkg/models"
)

// ErrNotFound is returned when a project does not exist.
var ErrNotFound = errors.New("not found")

type contentRow struct {
	ID            string `gorm:"primaryKey;size:64"`
	UserID        string `gorm:"index;size:64"`
	URL           string
	Title         string
	ExtractedText string
	MediaType     string
	Tags          datatypes.JSON
	ContentType   string
	Difficulty    string
	QualityScore  float64 `gorm:"index"`
	SavedAt       time.Time
	Shared        bool `gorm:"index"`
}

func (contentRow) TableName() string { return "saved_content" }

type analysisRow struct {
	ContentID      string `gorm:"primaryKey;size:64"`
	Technologies   datatypes.JSON
	KeyConcepts    datatypes.JSON
	ContentType    string
	Difficulty     string
	RelevanceScore float64
	AnalysisData   datatypes.JSON
}

func (analysisRow) TableName() string { return "content_analysis" }

type projectRow struct {
	ID              string `gorm:"primaryKey;size:64"`
	UserID          string `gorm:"index;size:64"`
	Title           string
	Description     string
	Technologies    datatypes.JSON
	Intent          datatypes.JSON
	IntentExpiresAt *time.Time
}

func (projectRow) TableName() string { return "projects" }

// Store implements content candidate retrieval and project storage on gorm.
type Store struct {
	db     *gorm.DB
	retry  RetryConfig
	logger *slog.Logger
}

// Open connects with the named driver ("postgres" or "sqlite").
func Open(driver, dsn string, logger *slog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	return New(db, logger), nil
}

// New wraps an open gorm handle.
func New(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, retry: DefaultRetryConfig(), logger: logger.With("component", "sqlstore")}
}

// Migrate creates or updates the tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&contentRow{}, &analysisRow{}, &projectRow{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FetchCandidates returns content rows visible to userID that pass the filter,
// ordered by quality then recency, each with its analysis when one exists.
func (s *Store) FetchCandidates(ctx context.Context, userID string, filter models.CandidateFilter) ([]models.Candidate, error) {
	filter = filter.WithDefaults()

	var rows []contentRow
	analyses := map[string]analysisRow{}

	err := s.withConn(ctx, "fetch_candidates", func(tx *gorm.DB) error {
		rows = nil
		q := tx.Model(&contentRow{}).
			Where("quality_score >= ?", filter.MinQuality).
			Where("TRIM(COALESCE(title, '')) <> ''").
			Where("TRIM(COALESCE(extracted_text, '')) <> ''")
		if filter.IncludeGlobal {
			q = q.Where("user_id = ? OR shared = ?", userID, true)
		} else {
			q = q.Where("user_id = ?", userID)
		}
		for _, p := range filter.ExcludePatterns {
			if p = strings.TrimSpace(p); p != "" {
				q = q.Where("url NOT LIKE ?", "%"+p+"%")
			}
		}
		if err := q.Order("quality_score DESC").Order("saved_at DESC").Limit(filter.Limit).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]string, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
		}
		var arows []analysisRow
		if err := tx.Where("content_id IN ?", ids).Find(&arows).Error; err != nil {
			return err
		}
		for _, a := range arows {
			analyses[a.ContentID] = a
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	out := make([]models.Candidate, 0, len(rows))
	for _, r := range rows {
		c := models.Candidate{Content: s.toRaw(r)}
		if a, ok := analyses[r.ID]; ok {
			c.Analysis = s.toAnalysis(a)
		}
		out = append(out, c)
	}
	return out, nil
}

// SaveContent upserts a content row and, when given, its analysis.
func (s *Store) SaveContent(ctx context.Context, raw models.RawContent, analysis *models.ContentAnalysis) error {
	tags, err := json.Marshal(nonNil(raw.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	row := contentRow{
		ID:            raw.ID,
		UserID:        raw.UserID,
		URL:           raw.URL,
		Title:         raw.Title,
		ExtractedText: raw.ExtractedText,
		MediaType:     raw.MediaType,
		Tags:          datatypes.JSON(tags),
		ContentType:   raw.ContentType,
		Difficulty:    raw.Difficulty,
		QualityScore:  raw.QualityScore,
		SavedAt:       raw.SavedAt,
		Shared:        raw.Shared,
	}

	var arow *analysisRow
	if analysis != nil {
		techs, err := json.Marshal(nonNil(analysis.Technologies))
		if err != nil {
			return fmt.Errorf("failed to marshal analysis technologies: %w", err)
		}
		concepts, err := json.Marshal(nonNil(analysis.KeyConcepts))
		if err != nil {
			return fmt.Errorf("failed to marshal key concepts: %w", err)
		}
		data := analysis.AnalysisData
		if len(data) == 0 {
			data = []byte(`{}`)
		}
		arow = &analysisRow{
			ContentID:      raw.ID,
			Technologies:   datatypes.JSON(techs),
			KeyConcepts:    datatypes.JSON(concepts),
			ContentType:    analysis.ContentType,
			Difficulty:     analysis.Difficulty,
			RelevanceScore: analysis.RelevanceScore,
			AnalysisData:   datatypes.JSON(data),
		}
	}

	return s.withConn(ctx, "save_content", func(tx *gorm.DB) error {
		return tx.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
			if arow != nil {
				return tx.Save(arow).Error
			}
			return nil
		})
	})
}

// GetContent returns a content row by id. It returns nil when missing.
func (s *Store) GetContent(ctx context.Context, id string) (*models.RawContent, error) {
	var row contentRow
	err := s.withConn(ctx, "get_content", func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Take(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load content %s: %w", id, err)
	}
	raw := s.toRaw(row)
	return &raw, nil
}

// GetProject returns a stored project.
func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	row, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}
	p := &models.Project{ID: row.ID, UserID: row.UserID, Title: row.Title, Description: row.Description}
	if len(row.Technologies) > 0 {
		if err := json.Unmarshal(row.Technologies, &p.Technologies); err != nil {
			s.logger.Warn("ignoring malformed project technologies", "project_id", id, "error", err)
		}
	}
	return p, nil
}

// SaveProject upserts a project, keeping any stored intent analysis.
func (s *Store) SaveProject(ctx context.Context, p models.Project) error {
	techs, err := json.Marshal(nonNil(p.Technologies))
	if err != nil {
		return fmt.Errorf("failed to marshal technologies: %w", err)
	}
	row := projectRow{ID: p.ID, UserID: p.UserID, Title: p.Title, Description: p.Description, Technologies: datatypes.JSON(techs)}

	return s.withConn(ctx, "save_project", func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "title", "description", "technologies"}),
		}).Create(&row).Error
	})
}

// GetStoredIntent returns the intent analysis attached to a project.
func (s *Store) GetStoredIntent(ctx context.Context, projectID string) (*models.StoredIntent, error) {
	row, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(row.Intent) == 0 || row.IntentExpiresAt == nil {
		return nil, ErrNotFound
	}

	stored := &models.StoredIntent{ProjectID: projectID, ExpiresAt: *row.IntentExpiresAt}
	if err := json.Unmarshal(row.Intent, &stored.Intent); err != nil {
		return nil, fmt.Errorf("failed to decode stored intent: %w", err)
	}
	return stored, nil
}

// SaveStoredIntent attaches an intent analysis to an existing project.
func (s *Store) SaveStoredIntent(ctx context.Context, stored models.StoredIntent) error {
	data, err := json.Marshal(stored.Intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}
	expires := stored.ExpiresAt

	return s.withConn(ctx, "save_intent", func(tx *gorm.DB) error {
		res := tx.Model(&projectRow{}).Where("id = ?", stored.ProjectID).
			Updates(map[string]any{"intent": datatypes.JSON(data), "intent_expires_at": &expires})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *Store) getProject(ctx context.Context, id string) (*projectRow, error) {
	var row projectRow
	err := s.withConn(ctx, "get_project", func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Take(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", id, err)
	}
	return &row, nil
}

func (s *Store) toRaw(r contentRow) models.RawContent {
	raw := models.RawContent{
		ID:            r.ID,
		UserID:        r.UserID,
		URL:           r.URL,
		Title:         r.Title,
		ExtractedText: r.ExtractedText,
		MediaType:     r.MediaType,
		ContentType:   r.ContentType,
		Difficulty:    r.Difficulty,
		QualityScore:  r.QualityScore,
		SavedAt:       r.SavedAt,
		Shared:        r.Shared,
	}
	if len(r.Tags) > 0 {
		if err := json.Unmarshal(r.Tags, &raw.Tags); err != nil {
			s.logger.Warn("ignoring malformed content tags", "id", r.ID, "error", err)
		}
	}
	return raw
}

func (s *Store) toAnalysis(a analysisRow) *models.ContentAnalysis {
	out := &models.ContentAnalysis{
		ContentID:      a.ContentID,
		ContentType:    a.ContentType,
		Difficulty:     a.Difficulty,
		RelevanceScore: a.RelevanceScore,
		AnalysisData:   []byte(a.AnalysisData),
	}
	if len(a.Technologies) > 0 {
		if err := json.Unmarshal(a.Technologies, &out.Technologies); err != nil {
			s.logger.Warn("ignoring malformed analysis technologies", "id", a.ContentID, "error", err)
		}
	}
	if len(a.KeyConcepts) > 0 {
		if err := json.Unmarshal(a.KeyConcepts, &out.KeyConcepts); err != nil {
			s.logger.Warn("ignoring malformed analysis concepts", "id", a.ContentID, "error", err)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
