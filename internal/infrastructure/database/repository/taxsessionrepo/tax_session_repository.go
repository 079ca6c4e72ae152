package taxsessionrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taxthink-server/internal/domain/taxsession"
	"taxthink-server/internal/infrastructure/database/dbschema"
	"taxthink-server/internal/utils/functional"
	"taxthink-server/internal/utils/platformerrors"
)

// TaxSessionGormRepository implements taxsession.Repository using GORM.
type TaxSessionGormRepository struct {
	db *gorm.DB
}

var _ taxsession.Repository = (*TaxSessionGormRepository)(nil)

// NewTaxSessionGormRepository constructs a new repository.
func NewTaxSessionGormRepository(db *gorm.DB) taxsession.Repository {
	return &TaxSessionGormRepository{db: db}
}

// CreateSession inserts a session and backfills its id and timestamps.
func (repo *TaxSessionGormRepository) CreateSession(ctx context.Context, session *taxsession.Session) error {
	entity := dbschema.NewSchemaTaxSession(session)
	if err := repo.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create session",
			err,
			"ts-01",
		)
	}
	*session = *entity.EtoD()
	return nil
}

// GetSession retrieves a session by id.
func (repo *TaxSessionGormRepository) GetSession(ctx context.Context, id int) (*taxsession.Session, error) {
	var entity dbschema.TaxSession
	err := repo.db.WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"session not found",
			err,
			"ts-02",
		)
	}
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to find session by id",
			err,
			"ts-03",
		)
	}

	return entity.EtoD(), nil
}

// ListSessions returns every session, most recently updated first.
func (repo *TaxSessionGormRepository) ListSessions(ctx context.Context) ([]*taxsession.Session, error) {
	var entities []dbschema.TaxSession
	err := repo.db.WithContext(ctx).
		Order("updated_at DESC").
		Find(&entities).
		Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list sessions",
			err,
			"ts-04",
		)
	}

	return functional.Map(entities, func(entity dbschema.TaxSession) *taxsession.Session {
		return entity.EtoD()
	}), nil
}

// UpdateSession applies a partial update and returns the stored row. The
// updated_at column is refreshed even when no field changes.
func (repo *TaxSessionGormRepository) UpdateSession(ctx context.Context, id int, updates taxsession.SessionUpdate) (*taxsession.Session, error) {
	assignments := map[string]interface{}{
		"updated_at": gorm.Expr("NOW()"),
	}
	if updates.Title != nil {
		assignments["title"] = *updates.Title
	}
	if updates.Jurisdiction != nil {
		assignments["jurisdiction"] = string(*updates.Jurisdiction)
	}
	if updates.Currency != nil {
		assignments["currency"] = string(*updates.Currency)
	}
	if updates.Status != nil {
		assignments["status"] = string(*updates.Status)
	}

	result := repo.db.WithContext(ctx).
		Model(&dbschema.TaxSession{}).
		Where("id = ?", id).
		Updates(assignments)
	if result.Error != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update session",
			result.Error,
			"ts-05",
		)
	}
	if result.RowsAffected == 0 {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"session not found",
			nil,
			"ts-06",
		)
	}

	return repo.GetSession(ctx, id)
}

// CreateMessage appends a message and backfills its id and timestamp.
func (repo *TaxSessionGormRepository) CreateMessage(ctx context.Context, message *taxsession.Message) error {
	entity, err := dbschema.NewSchemaMessage(message)
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeInternal,
			"failed to encode message metadata",
			err,
			"ts-07",
		)
	}

	if err := repo.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create message",
			err,
			"ts-08",
		)
	}

	stored, err := entity.EtoD()
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeInternal,
			"failed to decode stored message",
			err,
			"ts-09",
		)
	}
	*message = *stored
	return nil
}

// ListMessages returns a session's messages oldest first. Ties on the
// creation timestamp fall back to insertion order.
func (repo *TaxSessionGormRepository) ListMessages(ctx context.Context, sessionID int) ([]*taxsession.Message, error) {
	var entities []dbschema.Message
	err := repo.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list messages",
			err,
			"ts-10",
		)
	}

	messages := make([]*taxsession.Message, 0, len(entities))
	for i := range entities {
		message, err := entities[i].EtoD()
		if err != nil {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeInternal,
				"failed to decode stored message",
				err,
				"ts-11",
			)
		}
		messages = append(messages, message)
	}
	return messages, nil
}

// UpsertSessionDatum inserts the datum or, when its key triple already
// exists, replaces the stored value in place.
func (repo *TaxSessionGormRepository) UpsertSessionDatum(ctx context.Context, datum *taxsession.SessionDatum) (*taxsession.SessionDatum, error) {
	entity := dbschema.NewSchemaSessionDatum(datum)

	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}, {Name: "category"}, {Name: "data_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"data_value": entity.DataValue,
				"updated_at": gorm.Expr("NOW()"),
			}),
		}).
		Create(entity).
		Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to upsert session datum",
			err,
			"ts-12",
		)
	}

	// Reload to get the surviving id and timestamps
	var persisted dbschema.SessionDatum
	err = repo.db.WithContext(ctx).
		Where("session_id = ? AND category = ? AND data_key = ?", datum.SessionID, datum.Category, datum.DataKey).
		First(&persisted).
		Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to reload upserted session datum",
			err,
			"ts-13",
		)
	}

	return persisted.EtoD(), nil
}

// ListSessionData returns a session's data, optionally filtered by category.
func (repo *TaxSessionGormRepository) ListSessionData(ctx context.Context, sessionID int, category *string) ([]*taxsession.SessionDatum, error) {
	query := repo.db.WithContext(ctx).
		Where("session_id = ?", sessionID)
	if category != nil {
		query = query.Where("category = ?", *category)
	}

	var entities []dbschema.SessionDatum
	if err := query.Order("id ASC").Find(&entities).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list session data",
			err,
			"ts-14",
		)
	}

	return functional.Map(entities, func(entity dbschema.SessionDatum) *taxsession.SessionDatum {
		return entity.EtoD()
	}), nil
}
