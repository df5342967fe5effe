package candidate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/coursedex/internal/db"
	"github.com/kailas-cloud/coursedex/internal/db/postgres"
	"github.com/kailas-cloud/coursedex/internal/domain/course"
	"github.com/kailas-cloud/coursedex/internal/domain/search/filter"
)

// querier is the consumer interface for SQL reads (ISP). *pgxpool.Pool satisfies it.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var courseColumns = postgres.Columns{
	filter.FieldStatus:       "c.status",
	filter.FieldCategorySlug: "cate.slug",
	filter.FieldLevel:        "c.level",
	filter.FieldLanguage:     "c.language",
	filter.FieldPrice:        "c.price",
	filter.FieldRating:       "c.rating",
	filter.FieldInstructorID: "EXISTS (SELECT 1 FROM course_instructor fi " +
		"WHERE fi.course_id = c.id AND fi.user_id = %s::uuid)",
}

// Instructors are aggregated so a co-taught course yields exactly one row.
const candidateQuery = `
SELECT c.id::text,
       COALESCE(c.slug, ''),
       COALESCE(c.image, ''),
       c.name,
       COALESCE(c.description, ''),
       COALESCE(cate.name, ''),
       COALESCE(ins.names, ''),
       COALESCE(c.level, ''),
       COALESCE(c.language, ''),
       c.price::float8,
       COALESCE(c.rating, 0)::float8,
       COALESCE(c.total_rating, 0)::bigint,
       COALESCE(c.total_student, 0)::bigint,
       COALESCE(c.total_section, 0)::bigint,
       COALESCE(c.total_lesson, 0)::bigint,
       %s AS distance
FROM courses c
INNER JOIN course_embedding ce ON ce.course_id = c.id
LEFT JOIN categories cate ON cate.id = c.category_id
LEFT JOIN LATERAL (
    SELECT string_agg(u.full_name, ', ' ORDER BY u.full_name) AS names
    FROM course_instructor ci
    JOIN users u ON u.id = ci.user_id
    WHERE ci.course_id = c.id
) ins ON TRUE
%s
ORDER BY %s
LIMIT @limit OFFSET @offset`

const (
	distanceExpr   = "(ce.embedding <=> @vector::vector)"
	distanceOrder  = "distance ASC, c.id"
	noDistanceExpr = "0::float8"
	qualityOrder   = "c.rating DESC NULLS LAST, c.total_student DESC NULLS LAST, c.id"
)

// PostgresSource fetches candidates from PostgreSQL with the pgvector extension.
type PostgresSource struct {
	db querier
}

// NewPostgresSource creates a candidate source.
func NewPostgresSource(q querier) *PostgresSource {
	return &PostgresSource{db: q}
}

// Fetch returns up to limit candidates ordered by ascending cosine distance,
// or by quality when vector is nil.
func (p *PostgresSource) Fetch(
	ctx context.Context, pred filter.Predicate, vector []float32, limit, offset int,
) ([]course.Candidate, error) {
	if pred.AlwaysFalse() || limit <= 0 {
		return []course.Candidate{}, nil
	}

	sql, args, err := buildCandidateQuery(pred, vector, limit, offset)
	if err != nil {
		return nil, err
	}

	rows, err := p.db.Query(ctx, sql, args)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	defer rows.Close()

	out := make([]course.Candidate, 0, limit)
	for rows.Next() {
		var (
			c     course.Candidate
			level string
			price *float64
		)
		if err := rows.Scan(
			&c.ID, &c.Slug, &c.Image, &c.Name, &c.Description,
			&c.CategoryName, &c.InstructorName, &level, &c.Language,
			&price, &c.Rating, &c.TotalRating, &c.TotalStudent,
			&c.TotalSection, &c.TotalLesson, &c.Distance,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.Level = course.Level(level)
		if price != nil {
			c.Price = *price
			c.HasPrice = true
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return out, nil
}

func buildCandidateQuery(
	pred filter.Predicate, vector []float32, limit, offset int,
) (string, pgx.NamedArgs, error) {
	where, args, err := postgres.Where(pred, courseColumns)
	if err != nil {
		return "", nil, fmt.Errorf("build where: %w", err)
	}
	args["limit"] = limit
	args["offset"] = offset

	distance, order := noDistanceExpr, qualityOrder
	if len(vector) > 0 {
		distance, order = distanceExpr, distanceOrder
		args["vector"] = postgres.VectorLiteral(vector)
	}
	return fmt.Sprintf(candidateQuery, distance, where, order), args, nil
}
