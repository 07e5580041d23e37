package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/swadeshi/heritage/pkg/heritage"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// Repository implements heritage.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) heritage.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) heritage.Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("record not found in %s: %w", operation, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if pgErr.ConstraintName == "categories_name_key" {
				return heritage.ErrCategoryExists
			}
			return fmt.Errorf("duplicate entry in %s: %s", operation, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			switch pgErr.ConstraintName {
			case "entries_category_id_fkey":
				return heritage.ErrCategoryNotFound
			case "favorites_entry_id_fkey":
				return heritage.ErrEntryNotFound
			}
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "23514": // check_violation
			return fmt.Errorf("constraint %s violated in %s", pgErr.ConstraintName, operation)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// inTx runs fn inside a transaction, committing on success.
func (r *Repository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const entryColumns = `
	id, title, description, detailed_description, category_id, subcategory,
	state, city, images, historical_significance, cultural_importance,
	year_established, tags, location, status, featured, views, likes,
	liked_by, contributed_by, verified, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*heritage.Entry, error) {
	var e heritage.Entry
	var status string
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.DetailedDescription, &e.CategoryID, &e.Subcategory,
		&e.State, &e.City, &e.Images, &e.HistoricalSignificance, &e.CulturalImportance,
		&e.YearEstablished, &e.Tags, &e.Location, &status, &e.Featured, &e.Views, &e.Likes,
		&e.LikedBy, &e.ContributedBy, &e.Verified, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Status = heritage.Status(status)
	if e.Images == nil {
		e.Images = []heritage.Image{}
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if e.LikedBy == nil {
		e.LikedBy = []uuid.UUID{}
	}
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]*heritage.Entry, error) {
	defer rows.Close()

	var entries []*heritage.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// nil slices encode as SQL NULL; the columns are NOT NULL.
func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nonNilImages(images []heritage.Image) []heritage.Image {
	if images == nil {
		return []heritage.Image{}
	}
	return images
}

// searchDocument is the text indexed by the generated search_vector column.
func searchDocument(e *heritage.Entry) string {
	return strings.Join([]string{e.Title, e.Description, strings.Join(e.Tags, " ")}, " ")
}

// Entry operations

func (r *Repository) CreateEntry(ctx context.Context, entry *heritage.Entry) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE categories SET count = count + 1, updated_at = now() WHERE id = $1`,
			entry.CategoryID)
		if err != nil {
			return r.handlePostgresError("increment category count", err)
		}
		if tag.RowsAffected() == 0 {
			return heritage.ErrCategoryNotFound
		}

		likedBy := entry.LikedBy
		if likedBy == nil {
			likedBy = []uuid.UUID{}
		}
		images, tags := nonNilImages(entry.Images), nonNilTags(entry.Tags)
		_, err = tx.Exec(ctx, `
			INSERT INTO entries (
				id, title, description, detailed_description, category_id, subcategory,
				state, city, images, historical_significance, cultural_importance,
				year_established, tags, location, status, featured, views, likes,
				liked_by, contributed_by, verified, search_document, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, 0, $17, $18, $19, $20, $21, $22, $23)`,
			entry.ID, entry.Title, entry.Description, entry.DetailedDescription, entry.CategoryID, entry.Subcategory,
			entry.State, entry.City, images, entry.HistoricalSignificance, entry.CulturalImportance,
			entry.YearEstablished, tags, entry.Location, string(entry.Status), entry.Featured,
			len(likedBy), likedBy, entry.ContributedBy, entry.Verified, searchDocument(entry),
			entry.CreatedAt, entry.UpdatedAt)
		if err != nil {
			return r.handlePostgresError("create entry", err)
		}
		return nil
	})
}

func (r *Repository) GetEntry(ctx context.Context, id uuid.UUID) (*heritage.Entry, error) {
	row := r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = $1`, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, heritage.ErrEntryNotFound
		}
		return nil, r.handlePostgresError("get entry", err)
	}
	return entry, nil
}

func (r *Repository) GetEntriesByIDs(ctx context.Context, ids []uuid.UUID) ([]*heritage.Entry, error) {
	if len(ids) == 0 {
		return []*heritage.Entry{}, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM entries JOIN unnest($1::uuid[]) WITH ORDINALITY AS ids(id, ord) USING (id)
		ORDER BY ids.ord`, ids)
	if err != nil {
		return nil, r.handlePostgresError("get entries by ids", err)
	}
	return collectEntries(rows)
}

// escapeLike makes s a literal ILIKE operand.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// buildEntryWhere renders the filter predicate. It returns the clause, its
// arguments and the tsquery argument position (0 without search).
func buildEntryWhere(filter heritage.EntryFilter) (string, []interface{}, int) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.CategoryID != nil {
		add("category_id = $%d", *filter.CategoryID)
	}
	if filter.ContributedBy != nil {
		add("contributed_by = $%d", *filter.ContributedBy)
	}
	if filter.Featured {
		conds = append(conds, "featured")
	}
	if filter.State != "" {
		add(`state ILIKE $%d ESCAPE '\'`, "%"+escapeLike(filter.State)+"%")
	}
	searchArg := 0
	if len(filter.SearchTerms) > 0 {
		add("search_vector @@ websearch_to_tsquery('english', $%d)", strings.Join(filter.SearchTerms, " or "))
		searchArg = len(args)
	}

	if len(conds) == 0 {
		return "", args, searchArg
	}
	return " WHERE " + strings.Join(conds, " AND "), args, searchArg
}

func (r *Repository) ListEntries(ctx context.Context, filter heritage.EntryFilter) ([]*heritage.Entry, int, error) {
	where, args, searchArg := buildEntryWhere(filter)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, r.handlePostgresError("count entries", err)
	}

	order := " ORDER BY created_at DESC, id"
	if searchArg > 0 {
		order = fmt.Sprintf(" ORDER BY ts_rank(search_vector, websearch_to_tsquery('english', $%d)) DESC, created_at DESC, id", searchArg)
	}

	query := `SELECT ` + entryColumns + ` FROM entries` + where + order
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, r.handlePostgresError("list entries", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, 0, r.handlePostgresError("scan entries", err)
	}
	if entries == nil {
		entries = []*heritage.Entry{}
	}
	return entries, total, nil
}

func (r *Repository) UpdateEntry(ctx context.Context, entry *heritage.Entry, unmodifiedSince time.Time) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var previous uuid.UUID
		var updatedAt time.Time
		err := tx.QueryRow(ctx,
			`SELECT category_id, updated_at FROM entries WHERE id = $1 FOR UPDATE`, entry.ID).Scan(&previous, &updatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return heritage.ErrEntryNotFound
			}
			return r.handlePostgresError("lock entry", err)
		}
		if !updatedAt.Equal(unmodifiedSince) {
			return heritage.ErrEntryChanged
		}

		if previous != entry.CategoryID {
			// Lock both categories in id order so concurrent moves and
			// recounts cannot deadlock on each other.
			if _, err := tx.Exec(ctx,
				`SELECT id FROM categories WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
				[]uuid.UUID{previous, entry.CategoryID}); err != nil {
				return r.handlePostgresError("lock categories", err)
			}
			tag, err := tx.Exec(ctx,
				`UPDATE categories SET count = count + 1, updated_at = now() WHERE id = $1`, entry.CategoryID)
			if err != nil {
				return r.handlePostgresError("increment category count", err)
			}
			if tag.RowsAffected() == 0 {
				return heritage.ErrCategoryNotFound
			}
			if _, err := tx.Exec(ctx,
				`UPDATE categories SET count = count - 1, updated_at = now() WHERE id = $1`, previous); err != nil {
				return r.handlePostgresError("decrement category count", err)
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE entries SET
				title = $2, description = $3, detailed_description = $4, category_id = $5,
				subcategory = $6, state = $7, city = $8, historical_significance = $9,
				cultural_importance = $10, year_established = $11, tags = $12, location = $13,
				featured = $14, verified = $15, search_document = $16, status = $17,
				updated_at = GREATEST($18, updated_at + interval '1 microsecond')
			WHERE id = $1`,
			entry.ID, entry.Title, entry.Description, entry.DetailedDescription, entry.CategoryID,
			entry.Subcategory, entry.State, entry.City, entry.HistoricalSignificance,
			entry.CulturalImportance, entry.YearEstablished, nonNilTags(entry.Tags), entry.Location,
			entry.Featured, entry.Verified, searchDocument(entry), string(entry.Status), entry.UpdatedAt)
		if err != nil {
			return r.handlePostgresError("update entry", err)
		}
		return nil
	})
}

func (r *Repository) DeleteEntry(ctx context.Context, id uuid.UUID) (*heritage.Entry, error) {
	var deleted *heritage.Entry
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `DELETE FROM entries WHERE id = $1 RETURNING `+entryColumns, id)
		e, err := scanEntry(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return heritage.ErrEntryNotFound
			}
			return r.handlePostgresError("delete entry", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE categories SET count = count - 1, updated_at = now() WHERE id = $1`, e.CategoryID); err != nil {
			return r.handlePostgresError("decrement category count", err)
		}
		deleted = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// Counter primitives

func (r *Repository) IncrementViews(ctx context.Context, id uuid.UUID) (*heritage.Entry, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE entries SET views = views + 1 WHERE id = $1 RETURNING `+entryColumns, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, heritage.ErrEntryNotFound
		}
		return nil, r.handlePostgresError("increment views", err)
	}
	return entry, nil
}

// ToggleLike flips membership and adjusts the counter in one statement. The
// row lock taken by UPDATE serializes concurrent toggles on the same entry.
func (r *Repository) ToggleLike(ctx context.Context, id, user uuid.UUID) (*heritage.LikeResult, error) {
	var result heritage.LikeResult
	err := r.db.QueryRow(ctx, `
		UPDATE entries SET
			liked_by = CASE WHEN $2::uuid = ANY(liked_by)
				THEN array_remove(liked_by, $2::uuid)
				ELSE array_append(liked_by, $2::uuid) END,
			likes = CASE WHEN $2::uuid = ANY(liked_by) THEN likes - 1 ELSE likes + 1 END
		WHERE id = $1
		RETURNING likes, $2::uuid = ANY(liked_by)`, id, user).Scan(&result.Likes, &result.Liked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, heritage.ErrEntryNotFound
		}
		return nil, r.handlePostgresError("toggle like", err)
	}
	return &result, nil
}

func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to heritage.Status, at time.Time) (*heritage.Entry, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE entries SET status = $3, updated_at = GREATEST($4, updated_at + interval '1 microsecond')
		WHERE id = $1 AND status = $2
		RETURNING `+entryColumns, id, string(from), string(to), at)
	entry, err := scanEntry(row)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, r.handlePostgresError("transition status", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM entries WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, r.handlePostgresError("transition status", err)
	}
	if !exists {
		return nil, heritage.ErrEntryNotFound
	}
	return nil, heritage.ErrInvalidTransition
}

// Category operations

const categoryColumns = `id, name, description, icon, color, image, featured, count, created_at, updated_at`

func scanCategory(row rowScanner) (*heritage.Category, error) {
	var c heritage.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.Color, &c.Image,
		&c.Featured, &c.Count, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, category *heritage.Category) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		category.ID, category.Name, category.Description, category.Icon, category.Color,
		category.Image, category.Featured, category.Count, category.CreatedAt, category.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create category", err)
	}
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id uuid.UUID) (*heritage.Category, error) {
	category, err := scanCategory(r.db.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, heritage.ErrCategoryNotFound
		}
		return nil, r.handlePostgresError("get category", err)
	}
	return category, nil
}

func (r *Repository) GetCategoriesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*heritage.Category, error) {
	result := make(map[uuid.UUID]*heritage.Category, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, r.handlePostgresError("get categories by ids", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		result[c.ID] = c
	}
	return result, rows.Err()
}

func (r *Repository) ListCategories(ctx context.Context) ([]*heritage.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	if err != nil {
		return nil, r.handlePostgresError("list categories", err)
	}
	defer rows.Close()

	categories := []*heritage.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// RecountCategories locks every category row before counting. Entry
// writes touch their category row inside the same transaction, so each one
// either committed before the count or waits until the repair commits.
func (r *Repository) RecountCategories(ctx context.Context) ([]heritage.CountRepair, error) {
	var repairs []heritage.CountRepair
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT id, name, count FROM categories ORDER BY id FOR UPDATE`)
		if err != nil {
			return r.handlePostgresError("lock categories", err)
		}
		var categories []heritage.CountRepair
		for rows.Next() {
			var c heritage.CountRepair
			if err := rows.Scan(&c.CategoryID, &c.Name, &c.From); err != nil {
				rows.Close()
				return err
			}
			categories = append(categories, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return r.handlePostgresError("lock categories", err)
		}

		rows, err = tx.Query(ctx, `SELECT category_id, count(*) FROM entries GROUP BY category_id`)
		if err != nil {
			return r.handlePostgresError("count entries by category", err)
		}
		actual := make(map[uuid.UUID]int)
		for rows.Next() {
			var id uuid.UUID
			var n int
			if err := rows.Scan(&id, &n); err != nil {
				rows.Close()
				return err
			}
			actual[id] = n
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return r.handlePostgresError("count entries by category", err)
		}

		for _, c := range categories {
			c.To = actual[c.CategoryID]
			if c.From == c.To {
				continue
			}
			if _, err := tx.Exec(ctx,
				`UPDATE categories SET count = $2, updated_at = now() WHERE id = $1`, c.CategoryID, c.To); err != nil {
				return r.handlePostgresError("repair category count", err)
			}
			repairs = append(repairs, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(repairs, func(i, j int) bool {
		return repairs[i].Name < repairs[j].Name
	})
	return repairs, nil
}

// Favorite operations

func (r *Repository) ToggleFavorite(ctx context.Context, user, entry uuid.UUID) ([]uuid.UUID, error) {
	_, err := r.db.Exec(ctx, `
		WITH removed AS (
			DELETE FROM favorites WHERE user_id = $1 AND entry_id = $2 RETURNING 1
		)
		INSERT INTO favorites (user_id, entry_id)
		SELECT $1, $2 WHERE NOT EXISTS (SELECT 1 FROM removed)
		ON CONFLICT DO NOTHING`, user, entry)
	if err != nil {
		return nil, r.handlePostgresError("toggle favorite", err)
	}
	return r.ListFavorites(ctx, user)
}

func (r *Repository) ListFavorites(ctx context.Context, user uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT entry_id FROM favorites WHERE user_id = $1 ORDER BY created_at, entry_id`, user)
	if err != nil {
		return nil, r.handlePostgresError("list favorites", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
