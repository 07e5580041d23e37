package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/swadeshi/heritage/internal/logger"
	"github.com/swadeshi/heritage/pkg/heritage"
	"github.com/swadeshi/heritage/pkg/heritage/api"
	"github.com/swadeshi/heritage/pkg/heritage/config"
	"github.com/swadeshi/heritage/pkg/heritage/reconcile"
	repopg "github.com/swadeshi/heritage/pkg/heritage/repo/postgres"
	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var defaultCategories []byte

const usage = `Heritage Admin CLI

Maintenance tool for the heritage catalogue. Uses the same environment as the server.

USAGE:
  admin <command> [options]

COMMANDS:
  migrate            Apply the database schema (postgres only)
  seed-categories    Create categories from a YAML file (default: built-in set)
  reconcile          Recompute category counts from entries
  stats              Show entry and category counts
  token              Issue a signed access token

ENVIRONMENT VARIABLES:
  DATABASE_URL      "memory" or a PostgreSQL connection string
  DB_SCHEMA         PostgreSQL schema name (default: heritage)
  JWT_SECRET        HS256 signing secret (token only)

  Configuration can be loaded from a .env file in the current directory.
  Command line environment variables override .env file values.

EXAMPLES:
  admin migrate
  admin seed-categories
  admin seed-categories --file=./categories.yaml
  admin reconcile --json
  admin stats
  admin token --role=admin --ttl=24h
  admin token --user-id=550e8400-e29b-41d4-a716-446655440000

OPTIONS:
  --file=<path>        Seed file (seed-categories)
  --user-id=<uuid>     Token subject (token, default: random)
  --role=<role>        user or admin (token, default: user)
  --ttl=<duration>     Token lifetime (token, default: 24h)
  --json               Output as JSON
`

// system is the actor used for administrative writes.
var system = heritage.Identity{Role: heritage.RoleAdmin}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	// Check for help
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage)
		os.Exit(0)
	}

	flags, useJSON := parseFlags(os.Args[2:])
	ctx := context.Background()

	if command == "token" {
		handleToken(flags, useJSON)
		return
	}

	cfg, err := config.Load(
		config.WithEnv(),
		config.WithEventLogging(false),
		config.WithReconcileSchedule(""),
	)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	switch command {
	case "migrate":
		handleMigrate(ctx, cfg)
		return
	case "seed-categories", "reconcile", "stats":
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}

	lg, err := logger.New("warn", true)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer lg.Sync()

	rt, err := cfg.BuildService(ctx, lg)
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}
	defer rt.Close()

	switch command {
	case "seed-categories":
		handleSeed(ctx, rt.Service, flags["file"], useJSON)
	case "reconcile":
		handleReconcile(ctx, rt.Repository, lg, useJSON)
	case "stats":
		handleStats(ctx, rt.Repository, useJSON)
	}
}

func parseFlags(args []string) (map[string]string, bool) {
	flags := map[string]string{}
	useJSON := false
	for _, arg := range args {
		if arg == "--json" {
			useJSON = true
			continue
		}
		if key, value := parseFlag(arg); key != "" {
			flags[key] = value
		}
	}
	return flags, useJSON
}

func parseFlag(arg string) (string, string) {
	if len(arg) > 2 && arg[:2] == "--" {
		arg = arg[2:]
		if key, value, ok := strings.Cut(arg, "="); ok {
			return key, value
		}
		return arg, "true"
	}
	return "", ""
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func handleMigrate(ctx context.Context, cfg *config.ServerConfig) {
	if cfg.DatabaseType != "postgres" {
		log.Fatalf("migrate requires a postgres DATABASE_URL")
	}
	pool, err := config.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := repopg.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}
	fmt.Printf("Schema applied to %s\n", cfg.DBSchema)
}

type seedFile struct {
	Categories []heritage.CreateCategoryRequest `yaml:"categories"`
}

func loadSeed(path string) ([]heritage.CreateCategoryRequest, error) {
	data := defaultCategories
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("failed to read seed file: %w", err)
		}
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return seed.Categories, nil
}

// seedResult reports what seed-categories did
type seedResult struct {
	Created []*heritage.Category `json:"created"`
	Skipped []string             `json:"skipped"`
}

// seed creates each category, skipping names that already exist.
func seed(ctx context.Context, svc heritage.Service, reqs []heritage.CreateCategoryRequest) (*seedResult, error) {
	result := &seedResult{Created: []*heritage.Category{}, Skipped: []string{}}
	for _, req := range reqs {
		category, err := svc.CreateCategory(ctx, req, system)
		if errors.Is(err, heritage.ErrCategoryExists) {
			result.Skipped = append(result.Skipped, req.Name)
			continue
		}
		if err != nil {
			return result, fmt.Errorf("failed to create %s: %w", req.Name, err)
		}
		result.Created = append(result.Created, category)
	}
	return result, nil
}

func handleSeed(ctx context.Context, svc heritage.Service, path string, useJSON bool) {
	reqs, err := loadSeed(path)
	if err != nil {
		log.Fatalf("%v", err)
	}

	result, err := seed(ctx, svc, reqs)
	if err != nil {
		log.Fatalf("Failed to seed categories: %v", err)
	}

	if useJSON {
		printJSON(result)
		return
	}
	for _, c := range result.Created {
		fmt.Printf("created  %s  %s\n", c.ID, c.Name)
	}
	for _, name := range result.Skipped {
		fmt.Printf("exists   %s\n", name)
	}
	fmt.Printf("\nCreated: %d, skipped: %d\n", len(result.Created), len(result.Skipped))
}

func handleReconcile(ctx context.Context, repo heritage.Repository, lg logger.Logger, useJSON bool) {
	repairs, err := reconcile.New(repo, lg).Run(ctx)
	if err != nil {
		log.Fatalf("Failed to reconcile: %v", err)
	}

	if useJSON {
		if repairs == nil {
			repairs = []reconcile.Repair{}
		}
		printJSON(repairs)
		return
	}
	for _, r := range repairs {
		fmt.Printf("%-20s %d -> %d\n", truncate(r.Name, 20), r.From, r.To)
	}
	fmt.Printf("Repaired: %d\n", len(repairs))
}

// statistics is the stats command output
type statistics struct {
	Total      int                  `json:"total"`
	ByStatus   map[string]int       `json:"by_status"`
	Categories []*heritage.Category `json:"categories"`
	ComputedAt time.Time            `json:"computed_at"`
}

func collectStats(ctx context.Context, repo heritage.Repository) (*statistics, error) {
	stats := &statistics{ByStatus: map[string]int{}, ComputedAt: time.Now().UTC()}
	for _, status := range []heritage.Status{heritage.StatusPending, heritage.StatusActive, heritage.StatusArchived} {
		_, n, err := repo.ListEntries(ctx, heritage.EntryFilter{Status: status, Limit: 1})
		if err != nil {
			return nil, fmt.Errorf("failed to count %s entries: %w", status, err)
		}
		stats.ByStatus[string(status)] = n
		stats.Total += n
	}

	categories, err := repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	stats.Categories = categories
	return stats, nil
}

func handleStats(ctx context.Context, repo heritage.Repository, useJSON bool) {
	stats, err := collectStats(ctx, repo)
	if err != nil {
		log.Fatalf("Failed to get statistics: %v", err)
	}

	if useJSON {
		printJSON(stats)
		return
	}

	fmt.Println("=== Heritage Statistics ===")
	fmt.Printf("\nTotal Entries: %d\n", stats.Total)

	fmt.Println("\nBy Status:")
	for _, status := range []string{"pending", "active", "archived"} {
		fmt.Printf("  %-10s: %d\n", status, stats.ByStatus[status])
	}

	fmt.Println("\nCategories:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  ID\tNAME\tCOUNT\tFEATURED\n")
	for _, c := range stats.Categories {
		fmt.Fprintf(w, "  %s\t%s\t%d\t%t\n", c.ID.String()[:8]+"...", truncate(c.Name, 20), c.Count, c.Featured)
	}
	w.Flush()

	fmt.Printf("\nComputed at: %s\n", stats.ComputedAt.Format(time.RFC3339))
}

func handleToken(flags map[string]string, useJSON bool) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatalf("JWT_SECRET environment variable is required")
	}

	identity, ttl, err := tokenParams(flags)
	if err != nil {
		log.Fatalf("%v", err)
	}

	expires := time.Now().Add(ttl)
	token, err := api.IssueToken(api.NewJWTAuth(secret), identity, map[string]interface{}{
		"iat": time.Now().Unix(),
		"exp": expires.Unix(),
	})
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	if useJSON {
		printJSON(map[string]interface{}{
			"token":      token,
			"user_id":    identity.UserID,
			"role":       identity.Role,
			"expires_at": expires.UTC(),
		})
		return
	}
	fmt.Println(token)
}

func tokenParams(flags map[string]string) (heritage.Identity, time.Duration, error) {
	identity := heritage.Identity{UserID: uuid.New(), Role: heritage.RoleUser}
	if v, ok := flags["user-id"]; ok {
		id, err := uuid.Parse(v)
		if err != nil {
			return identity, 0, fmt.Errorf("invalid --user-id: %w", err)
		}
		identity.UserID = id
	}
	if v, ok := flags["role"]; ok {
		switch heritage.Role(v) {
		case heritage.RoleUser, heritage.RoleAdmin:
			identity.Role = heritage.Role(v)
		default:
			return identity, 0, fmt.Errorf("invalid --role %q (use user or admin)", v)
		}
	}

	ttl := 24 * time.Hour
	if v, ok := flags["ttl"]; ok {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return identity, 0, fmt.Errorf("invalid --ttl %q", v)
		}
		ttl = d
	}
	return identity, ttl, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
