package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oshokin/emergency-alert/internal/domain/emergency"
)

// errUnsupportedDriver is returned by OpenGorm for unknown drivers.
var errUnsupportedDriver = errors.New("unsupported database driver")

// subjectRow is the persisted form of emergency.Subject.
type subjectRow struct {
	ID           uint   `gorm:"primaryKey"`
	Phone        string `gorm:"size:32;uniqueIndex;not null"`
	Name         string `gorm:"not null"`
	Email        string
	MedicalNotes string
	CreatedAt    time.Time
	Contacts     []contactRow `gorm:"foreignKey:SubjectID"`
}

func (subjectRow) TableName() string { return "subjects" }

// contactRow is one emergency contact; Position keeps the list order.
type contactRow struct {
	ID        uint `gorm:"primaryKey"`
	SubjectID uint `gorm:"index;not null"`
	Position  int
	Name      string `gorm:"not null"`
	Phone     string `gorm:"not null"`
}

func (contactRow) TableName() string { return "emergency_contacts" }

// locationRow is one entry of the append-only location history.
type locationRow struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	SubjectPhone string `gorm:"size:32;index;not null"`
	Latitude     float64
	Longitude    float64
	Address      string
	Method       string    `gorm:"size:16"`
	RecordedAt   time.Time `gorm:"index"`
}

func (locationRow) TableName() string { return "location_history" }

// alertRow is the persisted form of emergency.Alert.
type alertRow struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	SubjectPhone     string `gorm:"size:32;index;not null"`
	Category         string `gorm:"size:16;not null"`
	Latitude         float64
	Longitude        float64
	Address          string
	FixMethod        string `gorm:"size:16"`
	FixTimestamp     time.Time
	Message          string
	Status           string `gorm:"size:16;index;not null"`
	CreatedAt        time.Time
	ResolvedAt       *time.Time
	ResolutionReason string
}

func (alertRow) TableName() string { return "emergency_alerts" }

// notificationRow is one fan-out outcome attached to an alert.
type notificationRow struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	AlertID   int64 `gorm:"index;not null"`
	Target    string
	Channel   string
	Recipient string
	Success   bool
	Error     string
	CreatedAt time.Time
}

func (notificationRow) TableName() string { return "notification_outcomes" }

// GormRepository persists records through GORM.
type GormRepository struct {
	// db is the configured GORM handle.
	db *gorm.DB
}

// OpenGorm connects to the configured driver and migrates the schema.
func OpenGorm(ctx context.Context, driver, dsn string) (*GormRepository, error) {
	var dialector gorm.Dialector

	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// SQLite allows a single writer; serialise access instead of retrying on SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql handle: %w", err)
		}

		sqlDB.SetMaxOpenConns(1)
	}

	err = db.WithContext(ctx).AutoMigrate(
		new(subjectRow),
		new(contactRow),
		new(locationRow),
		new(alertRow),
		new(notificationRow),
	)
	if err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &GormRepository{db: db}, nil
}

// GetSubject returns the subject keyed by phone.
func (r *GormRepository) GetSubject(ctx context.Context, phone string) (*emergency.Subject, error) {
	var row subjectRow

	err := r.db.WithContext(ctx).
		Preload("Contacts", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("phone = ?", phone).
		First(&row).Error
	if err != nil {
		return nil, notFound(err, "get subject")
	}

	return row.toDomain(), nil
}

// AddSubject stores a new subject together with its contacts.
func (r *GormRepository) AddSubject(ctx context.Context, subject *emergency.Subject) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(new(subjectRow)).Where("phone = ?", subject.Phone).Count(&count).Error; err != nil {
			return fmt.Errorf("check subject: %w", err)
		}

		if count > 0 {
			return fmt.Errorf("add subject %s: %w", subject.Phone, ErrAlreadyExists)
		}

		row := subjectFromDomain(subject)
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("create subject: %w", err)
		}

		return nil
	})
}

// AddContact appends a contact to the subject's list.
func (r *GormRepository) AddContact(ctx context.Context, phone string, contact emergency.Contact) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subject subjectRow
		if err := tx.Where("phone = ?", phone).First(&subject).Error; err != nil {
			return notFound(err, "find subject")
		}

		var count int64
		if err := tx.Model(new(contactRow)).Where("subject_id = ?", subject.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("count contacts: %w", err)
		}

		row := &contactRow{
			SubjectID: subject.ID,
			Position:  int(count),
			Name:      contact.Name,
			Phone:     contact.Phone,
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("create contact: %w", err)
		}

		return nil
	})
}

// AppendLocationFix appends a fix to the history.
func (r *GormRepository) AppendLocationFix(ctx context.Context, fix *emergency.LocationFix) (int64, error) {
	row := &locationRow{
		SubjectPhone: fix.SubjectPhone,
		Latitude:     fix.Latitude,
		Longitude:    fix.Longitude,
		Address:      fix.Address,
		Method:       string(fix.Method),
		RecordedAt:   fix.Timestamp.UTC(),
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return 0, fmt.Errorf("append location: %w", err)
	}

	return row.ID, nil
}

// LatestLocationFix returns the most recent fix of the subject.
func (r *GormRepository) LatestLocationFix(ctx context.Context, phone string) (*emergency.LocationFix, error) {
	var row locationRow

	err := r.db.WithContext(ctx).
		Where("subject_phone = ?", phone).
		Order("recorded_at DESC").
		Order("id DESC").
		First(&row).Error
	if err != nil {
		return nil, notFound(err, "latest location")
	}

	return &emergency.LocationFix{
		ID:           row.ID,
		SubjectPhone: row.SubjectPhone,
		Latitude:     row.Latitude,
		Longitude:    row.Longitude,
		Address:      row.Address,
		Method:       emergency.Method(row.Method),
		Timestamp:    row.RecordedAt,
	}, nil
}

// CreateAlert stores a new active alert.
func (r *GormRepository) CreateAlert(ctx context.Context, alert *emergency.Alert) (int64, error) {
	row := &alertRow{
		SubjectPhone: alert.SubjectPhone,
		Category:     string(alert.Category),
		Latitude:     alert.Fix.Latitude,
		Longitude:    alert.Fix.Longitude,
		Address:      alert.Fix.Address,
		FixMethod:    string(alert.Fix.Method),
		FixTimestamp: alert.Fix.Timestamp.UTC(),
		Message:      alert.Message,
		Status:       string(emergency.StatusActive),
		CreatedAt:    alert.CreatedAt.UTC(),
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return 0, fmt.Errorf("create alert: %w", err)
	}

	return row.ID, nil
}

// GetAlert returns the alert by id.
func (r *GormRepository) GetAlert(ctx context.Context, id int64) (*emergency.Alert, error) {
	var row alertRow
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFound(err, "get alert")
	}

	return row.toDomain(), nil
}

// ResolveAlert marks an active alert resolved.
func (r *GormRepository) ResolveAlert(ctx context.Context, id int64, reason string, at time.Time) (bool, error) {
	resolvedAt := at.UTC()

	result := r.db.WithContext(ctx).
		Model(new(alertRow)).
		Where("id = ? AND status = ?", id, string(emergency.StatusActive)).
		Updates(map[string]any{
			"status":            string(emergency.StatusResolved),
			"resolved_at":       &resolvedAt,
			"resolution_reason": reason,
		})
	if result.Error != nil {
		return false, fmt.Errorf("resolve alert %d: %w", id, result.Error)
	}

	return result.RowsAffected > 0, nil
}

// ListActiveAlerts returns active alerts, newest first.
func (r *GormRepository) ListActiveAlerts(ctx context.Context) ([]*emergency.Alert, error) {
	var rows []alertRow

	err := r.db.WithContext(ctx).
		Where("status = ?", string(emergency.StatusActive)).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}

	result := make([]*emergency.Alert, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toDomain())
	}

	return result, nil
}

// SaveNotificationReport attaches the fan-out outcomes to an alert.
func (r *GormRepository) SaveNotificationReport(
	ctx context.Context,
	alertID int64,
	report *emergency.FanoutReport,
) error {
	if report == nil || len(report.Outcomes) == 0 {
		return nil
	}

	rows := make([]notificationRow, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		rows = append(rows, notificationRow{
			AlertID:   alertID,
			Target:    string(o.Target),
			Channel:   string(o.Channel),
			Recipient: o.Recipient,
			Success:   o.Success,
			Error:     o.Error,
		})
	}

	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("save notification report: %w", err)
	}

	return nil
}

// NotificationOutcomes returns the outcomes stored for an alert in insertion order.
func (r *GormRepository) NotificationOutcomes(
	ctx context.Context,
	alertID int64,
) ([]emergency.NotificationOutcome, error) {
	var rows []notificationRow
	if err := r.db.WithContext(ctx).Where("alert_id = ?", alertID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list notification outcomes: %w", err)
	}

	result := make([]emergency.NotificationOutcome, 0, len(rows))
	for _, row := range rows {
		result = append(result, emergency.NotificationOutcome{
			Target:    emergency.TargetKind(row.Target),
			Channel:   emergency.Channel(row.Channel),
			Recipient: row.Recipient,
			Success:   row.Success,
			Error:     row.Error,
		})
	}

	return result, nil
}

// Close releases the underlying connection pool.
func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("get sql handle: %w", err)
	}

	return sqlDB.Close()
}

// notFound maps gorm.ErrRecordNotFound to ErrNotFound and wraps everything else.
func notFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	return fmt.Errorf("%s: %w", op, err)
}

func subjectFromDomain(subject *emergency.Subject) *subjectRow {
	row := &subjectRow{
		Phone:        subject.Phone,
		Name:         subject.Name,
		Email:        subject.Email,
		MedicalNotes: subject.MedicalNotes,
		CreatedAt:    subject.CreatedAt.UTC(),
	}

	for i, c := range subject.Contacts {
		row.Contacts = append(row.Contacts, contactRow{
			Position: i,
			Name:     c.Name,
			Phone:    c.Phone,
		})
	}

	return row
}

func (row *subjectRow) toDomain() *emergency.Subject {
	subject := &emergency.Subject{
		Phone:        row.Phone,
		Name:         row.Name,
		Email:        row.Email,
		MedicalNotes: row.MedicalNotes,
		CreatedAt:    row.CreatedAt,
	}

	for _, c := range row.Contacts {
		subject.Contacts = append(subject.Contacts, emergency.Contact{Name: c.Name, Phone: c.Phone})
	}

	return subject
}

func (row *alertRow) toDomain() *emergency.Alert {
	alert := &emergency.Alert{
		ID:           row.ID,
		SubjectPhone: row.SubjectPhone,
		Category:     emergency.Category(row.Category),
		Fix: emergency.LocationFix{
			SubjectPhone: row.SubjectPhone,
			Latitude:     row.Latitude,
			Longitude:    row.Longitude,
			Address:      row.Address,
			Method:       emergency.Method(row.FixMethod),
			Timestamp:    row.FixTimestamp,
		},
		Message:          row.Message,
		Status:           emergency.Status(row.Status),
		CreatedAt:        row.CreatedAt,
		ResolutionReason: row.ResolutionReason,
	}

	if row.ResolvedAt != nil {
		alert.ResolvedAt = *row.ResolvedAt
	}

	return alert
}
