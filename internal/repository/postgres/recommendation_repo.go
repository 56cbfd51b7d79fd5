package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"preptracker/internal/model"
	"preptracker/internal/repository"
	"preptracker/pkg/otel"
)

type RecommendationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewRecommendationRepository(db *pgxpool.Pool, logger *zap.Logger) *RecommendationRepository {
	return &RecommendationRepository{db: db, logger: logger}
}

func (r *RecommendationRepository) AppendRecommendation(ctx context.Context, rec model.RecommendationRecord) error {
	r.logger.Debug("Appending recommendation", zap.String("id", rec.ID))

	err := otel.Query(ctx, system, "insert", "recommendations", func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, `
            INSERT INTO recommendations (id, rec_date, user_prompt, recommendations, created_at)
            VALUES ($1, $2::date, $3, $4, $5)
        `, rec.ID, rec.Date, rec.UserPrompt, rec.Recommendations, rec.CreatedAt)
		return err
	})
	if err != nil {
		r.logger.Error("Failed to append recommendation", zap.Error(err), zap.String("id", rec.ID))
		return fmt.Errorf("failed to append recommendation: %w", err)
	}
	return nil
}

// ListRecommendations returns the newest records first.
func (r *RecommendationRepository) ListRecommendations(ctx context.Context, limit int) ([]model.RecommendationRecord, error) {
	recs := []model.RecommendationRecord{}
	err := otel.Query(ctx, system, "list", "recommendations", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, `
            SELECT id, to_char(rec_date, 'YYYY-MM-DD'), user_prompt, recommendations, created_at
            FROM recommendations
            ORDER BY created_at DESC
            LIMIT $1
        `, repository.ClampLimit(limit))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var rec model.RecommendationRecord
			if err := rows.Scan(&rec.ID, &rec.Date, &rec.UserPrompt, &rec.Recommendations, &rec.CreatedAt); err != nil {
				return err
			}
			rec.CreatedAt = rec.CreatedAt.UTC()
			recs = append(recs, rec)
		}
		return rows.Err()
	})
	if err != nil {
		r.logger.Error("Failed to list recommendations", zap.Error(err))
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	return recs, nil
}
