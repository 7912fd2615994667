// Package sqlbackend is the production-shaped Backend: gorm.io/gorm over
// gorm.io/driver/postgres or glebarez/sqlite, schema-managed by
// golang-migrate/migrate/v4, with query logging through orandin/slog-gorm.
// The commit is a row in nfig_commits; compare-and-set is a single
// `UPDATE ... WHERE commit_token = ?` whose RowsAffected decides the
// outcome.
package sqlbackend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	glsqlite "github.com/glebarez/sqlite"

	"github.com/getnfig/nfig/backend"
	"github.com/getnfig/nfig/tier"
	"github.com/getnfig/nfig/values"
)

// SQLBackend is a Backend over a gorm.DB. The zero value is not usable;
// construct with OpenPostgres or OpenSQLite.
type SQLBackend struct {
	db *gorm.DB
}

// OpenPostgres opens dsn with gorm.io/driver/postgres, runs migrations, and
// returns a ready SQLBackend.
func OpenPostgres(dsn string, logger *slog.Logger) (*SQLBackend, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: buildGormLogger(logger)})
	if err != nil {
		return nil, fmt.Errorf("sqlbackend: opening postgres: %w", err)
	}
	if err := runMigrations(db, "postgres"); err != nil {
		return nil, err
	}
	return &SQLBackend{db: db}, nil
}

// OpenSQLite opens dsn (a file path, or ":memory:") with the pure-Go
// glebarez/sqlite driver, runs migrations, and returns a ready SQLBackend.
func OpenSQLite(dsn string, logger *slog.Logger) (*SQLBackend, error) {
	db, err := gorm.Open(glsqlite.Open(dsn), &gorm.Config{Logger: buildGormLogger(logger)})
	if err != nil {
		return nil, fmt.Errorf("sqlbackend: opening sqlite: %w", err)
	}
	if err := runMigrations(db, "sqlite3"); err != nil {
		return nil, err
	}
	return &SQLBackend{db: db}, nil
}

// buildGormLogger wires slog through orandin/slog-gorm: slow-query
// threshold, trace-all only at debug level.
func buildGormLogger(logger *slog.Logger) gormlogger.Interface {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []slogGorm.Option{
		slogGorm.WithHandler(logger.Handler()),
		slogGorm.WithSlowThreshold(200 * time.Millisecond),
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		opts = append(opts, slogGorm.WithTraceAll())
	}
	return slogGorm.New(opts...)
}

var _ backend.Backend = (*SQLBackend)(nil)

func rowToOverride(r overrideRow) (values.OverrideValue, error) {
	o := values.OverrideValue{
		Name:        r.SettingName,
		StringValue: r.RawValue,
		DataCenter:  tier.DataCenter(r.DataCenter),
	}
	if r.HasSubApp {
		id := r.SubAppID
		o.SubAppID = &id
	}
	if r.ExpirationTime != nil {
		t, err := time.Parse(time.RFC3339Nano, *r.ExpirationTime)
		if err != nil {
			return values.OverrideValue{}, err
		}
		o.ExpirationTime = &t
	}
	return o, nil
}

func overrideToRow(appName string, o values.OverrideValue, id string) overrideRow {
	r := overrideRow{
		ID:          id,
		AppName:     appName,
		SettingName: o.Name,
		HasSubApp:   o.SubAppID != nil,
		DataCenter:  int32(o.DataCenter),
		RawValue:    o.StringValue,
	}
	if o.SubAppID != nil {
		r.SubAppID = *o.SubAppID
	}
	if o.ExpirationTime != nil {
		s := o.ExpirationTime.UTC().Format(time.RFC3339Nano)
		r.ExpirationTime = &s
	}
	return r
}

func subAppIDValue(id *int) int {
	if id == nil {
		return 0
	}
	return *id
}

func (s *SQLBackend) GetAppNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&commitRow{}).Distinct().Pluck("app_name", &names).Error
	return names, err
}

func (s *SQLBackend) GetCurrentCommit(ctx context.Context, appName string) (values.Commit, error) {
	var row commitRow
	err := s.db.WithContext(ctx).Where("app_name = ?", appName).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return values.InitialCommit, nil
	}
	if err != nil {
		return "", err
	}
	return values.Commit(row.CommitToken), nil
}

func (s *SQLBackend) GetSnapshot(ctx context.Context, appName string) (values.OverridesSnapshot, error) {
	commit, err := s.GetCurrentCommit(ctx, appName)
	if err != nil {
		return values.OverridesSnapshot{}, err
	}
	var rows []overrideRow
	if err := s.db.WithContext(ctx).Where("app_name = ?", appName).Find(&rows).Error; err != nil {
		return values.OverridesSnapshot{}, err
	}
	overrides := make([]values.OverrideValue, 0, len(rows))
	for _, r := range rows {
		o, err := rowToOverride(r)
		if err != nil {
			continue
		}
		overrides = append(overrides, o)
	}
	return values.OverridesSnapshot{AppName: appName, Commit: commit, Overrides: overrides}, nil
}

// ensureCommitRow inserts appName's commit row at InitialCommit if absent,
// a no-op otherwise. Must run inside the caller's transaction.
func ensureCommitRow(tx *gorm.DB, appName string) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&commitRow{AppName: appName, CommitToken: string(values.InitialCommit)}).Error
}

// casCommit performs the compare-and-set: if expectedCommit is non-empty,
// the update only applies when the stored token still matches it; an empty
// expectedCommit always succeeds. Returns whether the CAS succeeded.
func casCommit(tx *gorm.DB, appName string, newCommit values.Commit, expectedCommit values.Commit) (bool, error) {
	q := tx.Model(&commitRow{}).Where("app_name = ?", appName)
	if expectedCommit != "" {
		q = q.Where("commit_token = ?", string(expectedCommit))
	}
	res := q.Update("commit_token", string(newCommit))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *SQLBackend) SetOverride(ctx context.Context, appName string, override values.OverrideValue, user string, expectedCommit values.Commit) (values.OverridesSnapshot, bool, error) {
	var snap values.OverridesSnapshot
	var ok bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCommitRow(tx, appName); err != nil {
			return err
		}
		newCommit, err := values.NewCommit()
		if err != nil {
			return err
		}
		succeeded, err := casCommit(tx, appName, newCommit, expectedCommit)
		if err != nil {
			return err
		}
		if !succeeded {
			return nil
		}

		id, err := values.NewCommit()
		if err != nil {
			return err
		}
		row := overrideToRow(appName, override, string(id))
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "app_name"}, {Name: "setting_name"}, {Name: "sub_app_id"}, {Name: "has_sub_app"}, {Name: "data_center"}},
			DoUpdates: clause.AssignmentColumns([]string{"raw_value", "expiration_time"}),
		}).Create(&row).Error; err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return values.OverridesSnapshot{}, false, err
	}
	if !ok {
		return values.OverridesSnapshot{}, false, nil
	}
	snap, err = s.GetSnapshot(ctx, appName)
	return snap, ok, err
}

func (s *SQLBackend) ClearOverride(ctx context.Context, appName string, key values.OverrideKey, user string, expectedCommit values.Commit) (values.OverridesSnapshot, bool, error) {
	var ok bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCommitRow(tx, appName); err != nil {
			return err
		}
		newCommit, err := values.NewCommit()
		if err != nil {
			return err
		}
		succeeded, err := casCommit(tx, appName, newCommit, expectedCommit)
		if err != nil {
			return err
		}
		if !succeeded {
			return nil
		}
		q := tx.Where(
			"app_name = ? AND setting_name = ? AND has_sub_app = ? AND data_center = ?",
			appName, key.Name, key.HasSubApp, int32(key.DataCenter),
		)
		if key.HasSubApp {
			q = q.Where("sub_app_id = ?", key.SubAppID)
		}
		if err := q.Delete(&overrideRow{}).Error; err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return values.OverridesSnapshot{}, false, err
	}
	if !ok {
		return values.OverridesSnapshot{}, false, nil
	}
	snap, err := s.GetSnapshot(ctx, appName)
	return snap, ok, err
}

func (s *SQLBackend) RestoreSnapshot(ctx context.Context, appName string, snapshot values.OverridesSnapshot, user string) (values.OverridesSnapshot, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCommitRow(tx, appName); err != nil {
			return err
		}
		if err := tx.Where("app_name = ?", appName).Delete(&overrideRow{}).Error; err != nil {
			return err
		}
		for _, o := range snapshot.Overrides {
			id, err := values.NewCommit()
			if err != nil {
				return err
			}
			row := overrideToRow(appName, o, string(id))
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		newCommit, err := values.NewCommit()
		if err != nil {
			return err
		}
		_, err = casCommit(tx, appName, newCommit, "")
		return err
	})
	if err != nil {
		return values.OverridesSnapshot{}, err
	}
	return s.GetSnapshot(ctx, appName)
}

func (s *SQLBackend) UpdateSubApps(ctx context.Context, appName string, subApps []values.SubAppMetadata) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("app_name = ?", appName).Delete(&subAppRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("app_name = ?", appName).Delete(&defaultRow{}).Error; err != nil {
			return err
		}
		for _, sa := range subApps {
			row := subAppRow{
				AppName:    appName,
				HasSubApp:  sa.SubAppID != nil,
				SubAppID:   subAppIDValue(sa.SubAppID),
				SubAppName: sa.SubAppName,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			for settingName, defaults := range sa.DefaultsBySetting {
				for i, d := range defaults {
					dr := defaultRow{
						AppName:         appName,
						HasSubApp:       sa.SubAppID != nil,
						SubAppID:        subAppIDValue(sa.SubAppID),
						SettingName:     settingName,
						Idx:             i,
						StringValue:     d.StringValue,
						Tier:            int32(d.Tier),
						DataCenter:      int32(d.DataCenter),
						AllowsOverrides: d.AllowsOverrides,
					}
					if err := tx.Create(&dr).Error; err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
}

func (s *SQLBackend) SetMetadata(ctx context.Context, appName string, metadata *values.BySetting[values.SettingMetadata]) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("app_name = ?", appName).Delete(&metadataRow{}).Error; err != nil {
			return err
		}
		if metadata == nil {
			return nil
		}
		for _, name := range metadata.Keys() {
			m, _ := metadata.Get(name)
			row := metadataRow{
				AppName:               appName,
				SettingName:           m.Name,
				Description:           m.Description,
				TypeName:              m.TypeName,
				IsEncrypted:           m.IsEncrypted,
				IsEnum:                m.IsEnum,
				ConverterTypeName:     m.ConverterTypeName,
				IsDefaultConverter:    m.IsDefaultConverter,
				ChangeRequiresRestart: m.ChangeRequiresRestart,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLBackend) GetSubApps(ctx context.Context, appName string) ([]values.SubAppMetadata, error) {
	var rows []subAppRow
	if err := s.db.WithContext(ctx).Where("app_name = ?", appName).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	var defaults []defaultRow
	if err := s.db.WithContext(ctx).Where("app_name = ?", appName).Order("idx").Find(&defaults).Error; err != nil {
		return nil, err
	}

	out := make([]values.SubAppMetadata, 0, len(rows))
	for _, r := range rows {
		meta := values.SubAppMetadata{AppName: appName, SubAppName: r.SubAppName, DefaultsBySetting: make(map[string][]values.DefaultValue)}
		if r.HasSubApp {
			id := r.SubAppID
			meta.SubAppID = &id
		}
		for _, d := range defaults {
			if d.HasSubApp != r.HasSubApp || d.SubAppID != r.SubAppID {
				continue
			}
			dv := values.DefaultValue{
				Name:            d.SettingName,
				StringValue:     d.StringValue,
				Tier:            tier.Tier(d.Tier),
				DataCenter:      tier.DataCenter(d.DataCenter),
				AllowsOverrides: d.AllowsOverrides,
			}
			if d.HasSubApp {
				id := d.SubAppID
				dv.SubAppID = &id
			}
			meta.DefaultsBySetting[d.SettingName] = append(meta.DefaultsBySetting[d.SettingName], dv)
		}
		out = append(out, meta)
	}
	return out, nil
}

func (s *SQLBackend) GetSettingsMetadata(ctx context.Context, appName string) (*values.BySetting[values.SettingMetadata], error) {
	var rows []metadataRow
	if err := s.db.WithContext(ctx).Where("app_name = ?", appName).Order("setting_name").Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := values.NewBySetting[values.SettingMetadata]()
	for _, r := range rows {
		out.Set(r.SettingName, values.SettingMetadata{
			Name:                  r.SettingName,
			Description:           r.Description,
			TypeName:              r.TypeName,
			IsEncrypted:           r.IsEncrypted,
			IsEnum:                r.IsEnum,
			ConverterTypeName:     r.ConverterTypeName,
			IsDefaultConverter:    r.IsDefaultConverter,
			ChangeRequiresRestart: r.ChangeRequiresRestart,
		})
	}
	return out, nil
}

func (s *SQLBackend) GetDefaults(ctx context.Context, appName string, subAppID *int) ([]values.DefaultValue, error) {
	q := s.db.WithContext(ctx).Where("app_name = ?", appName).Order("idx")
	if subAppID == nil {
		q = q.Where("has_sub_app = ?", false)
	} else {
		q = q.Where("has_sub_app = ? AND sub_app_id = ?", true, *subAppID)
	}
	var rows []defaultRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]values.DefaultValue, 0, len(rows))
	for _, d := range rows {
		dv := values.DefaultValue{
			Name:            d.SettingName,
			StringValue:     d.StringValue,
			Tier:            tier.Tier(d.Tier),
			DataCenter:      tier.DataCenter(d.DataCenter),
			AllowsOverrides: d.AllowsOverrides,
		}
		if d.HasSubApp {
			id := d.SubAppID
			dv.SubAppID = &id
		}
		out = append(out, dv)
	}
	return out, nil
}
