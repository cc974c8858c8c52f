package orchestration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/search"
)

// ErrNotFound is returned by repository lookups that find no row.
var ErrNotFound = errors.New("orchestration: not found")

// Repository is the pgx-backed persistence layer for every table the
// pipeline stages read and write: search_results, website_discovery,
// scraped_chunks, company_profiles and its auxiliary tables. Grounded on
// original_source's database_service.py, with Portuguese column/field
// names translated to SPEC_FULL.md's English schema.
type Repository struct {
	db *sql.DB
}

// NewRepository binds a Repository to a connection pool.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SearchResultRow is one row of the search_results table.
type SearchResultRow struct {
	ID            int64
	CompanyID     string
	CorporateName string
	TradeName     string
	Municipality  string
	Results       []search.Result
	ResultsCount  int
	QueryUsed     string
	CreatedAt     time.Time
}

// SaveSearchResults inserts a new search_results row and returns its id.
func (r *Repository) SaveSearchResults(ctx context.Context, companyID, corporateName, tradeName, municipality, queryUsed string, results []search.Result) (int64, error) {
	payload, err := json.Marshal(results)
	if err != nil {
		return 0, fmt.Errorf("marshaling search results: %w", err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO sitescout.search_results
			(company_id, corporate_name, trade_name, municipality, results_json, results_count, query_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, companyID, corporateName, tradeName, municipality, payload, len(results), queryUsed).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("saving search results for %s: %w", companyID, err)
	}
	return id, nil
}

// GetLatestSearchResults returns the most recently saved search_results
// row for a company, or ErrNotFound if none exists.
func (r *Repository) GetLatestSearchResults(ctx context.Context, companyID string) (*SearchResultRow, error) {
	var row SearchResultRow
	var payload []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, company_id, corporate_name, trade_name, municipality, results_json, results_count, query_used, created_at
		FROM sitescout.search_results
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, companyID).Scan(
		&row.ID, &row.CompanyID, &row.CorporateName, &row.TradeName, &row.Municipality,
		&payload, &row.ResultsCount, &row.QueryUsed, &row.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading search results for %s: %w", companyID, err)
	}
	if err := json.Unmarshal(payload, &row.Results); err != nil {
		return nil, fmt.Errorf("unmarshaling search results for %s: %w", companyID, err)
	}
	return &row, nil
}

// DiscoveryRow is one row of the website_discovery table.
type DiscoveryRow struct {
	ID               int64
	CompanyID        string
	WebsiteURL       *string
	Status           string
	SearchID         *int64
	ConfidenceScore  *float64
	Reasoning        *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SaveDiscovery upserts the website_discovery row for a company (one row
// per company, identified by its unique company_id) in a single
// INSERT ... ON CONFLICT statement, with the same outcome as
// database_service.py's save_discovery check-then-update-or-insert.
func (r *Repository) SaveDiscovery(ctx context.Context, companyID string, websiteURL *string, status string, searchID *int64, confidence *float64, reasoning *string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sitescout.website_discovery
			(company_id, search_id, website_url, status, confidence_score, reasoning)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id) DO UPDATE SET
			search_id = EXCLUDED.search_id,
			website_url = EXCLUDED.website_url,
			status = EXCLUDED.status,
			confidence_score = EXCLUDED.confidence_score,
			reasoning = EXCLUDED.reasoning,
			updated_at = now()
		RETURNING id
	`, companyID, searchID, websiteURL, status, confidence, reasoning).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("saving discovery for %s: %w", companyID, err)
	}
	return id, nil
}

// GetDiscovery returns the website_discovery row for a company, or
// ErrNotFound if none exists.
func (r *Repository) GetDiscovery(ctx context.Context, companyID string) (*DiscoveryRow, error) {
	var row DiscoveryRow
	err := r.db.QueryRowContext(ctx, `
		SELECT id, company_id, website_url, status, search_id, confidence_score, reasoning, created_at, updated_at
		FROM sitescout.website_discovery
		WHERE company_id = $1
	`, companyID).Scan(
		&row.ID, &row.CompanyID, &row.WebsiteURL, &row.Status, &row.SearchID,
		&row.ConfidenceScore, &row.Reasoning, &row.CreatedAt, &row.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading discovery for %s: %w", companyID, err)
	}
	return &row, nil
}

// SaveChunksBatch inserts every chunk in one transaction, matching
// database_service.py's save_chunks_batch atomicity. Returns the number
// of chunks inserted.
func (r *Repository) SaveChunksBatch(ctx context.Context, companyID, websiteURL string, discoveryID *int64, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning chunk batch transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sitescout.scraped_chunks
			(company_id, website_url, discovery_id, chunk_index, total_chunks, chunk_content, token_count, source_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		sourceURLs, err := json.Marshal(c.SourceURLs)
		if err != nil {
			return 0, fmt.Errorf("marshaling chunk source urls: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, companyID, websiteURL, discoveryID, c.ChunkIndex, c.TotalChunks, c.ChunkContent, c.TokenCount, sourceURLs); err != nil {
			return 0, fmt.Errorf("inserting chunk %d for %s: %w", c.ChunkIndex, companyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing chunk batch: %w", err)
	}
	return len(chunks), nil
}

// GetChunks returns every scraped chunk for a company, ordered by index.
func (r *Repository) GetChunks(ctx context.Context, companyID string) ([]Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT company_id, website_url, discovery_id, chunk_index, total_chunks, chunk_content, token_count, source_urls, created_at
		FROM sitescout.scraped_chunks
		WHERE company_id = $1
		ORDER BY chunk_index ASC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("loading chunks for %s: %w", companyID, err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var sourceURLs []byte
		if err := rows.Scan(&c.CompanyID, &c.WebsiteURL, &c.DiscoveryID, &c.ChunkIndex, &c.TotalChunks, &c.ChunkContent, &c.TokenCount, &sourceURLs, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk for %s: %w", companyID, err)
		}
		if len(sourceURLs) > 0 {
			if err := json.Unmarshal(sourceURLs, &c.SourceURLs); err != nil {
				return nil, fmt.Errorf("unmarshaling chunk source urls for %s: %w", companyID, err)
			}
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks for %s: %w", companyID, err)
	}
	return chunks, nil
}

// SaveProfile upserts a company's profile and rewrites every auxiliary
// table (locations, services, product categories/items, certifications,
// awards, partnerships) in one transaction, matching
// database_service.py's save_profile + _save_profile_auxiliary_data
// delete-then-insert pattern. Returns the company_profiles row id.
func (r *Repository) SaveProfile(ctx context.Context, profile CompanyProfile) (int64, error) {
	fullProfile, err := json.Marshal(profile)
	if err != nil {
		return 0, fmt.Errorf("marshaling full profile for %s: %w", profile.CompanyID, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning profile save transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sitescout.company_profiles
			(company_id, company_name, description, founding_year, employee_range, industry,
			 business_model, target_audience, geographic_coverage, emails, phones, linkedin_url,
			 website_url, headquarters_address, source_urls, accepts_email, full_profile)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (company_id) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			description = EXCLUDED.description,
			founding_year = EXCLUDED.founding_year,
			employee_range = EXCLUDED.employee_range,
			industry = EXCLUDED.industry,
			business_model = EXCLUDED.business_model,
			target_audience = EXCLUDED.target_audience,
			geographic_coverage = EXCLUDED.geographic_coverage,
			emails = EXCLUDED.emails,
			phones = EXCLUDED.phones,
			linkedin_url = EXCLUDED.linkedin_url,
			website_url = EXCLUDED.website_url,
			headquarters_address = EXCLUDED.headquarters_address,
			source_urls = EXCLUDED.source_urls,
			accepts_email = EXCLUDED.accepts_email,
			full_profile = EXCLUDED.full_profile,
			updated_at = now()
		RETURNING id
	`, profile.CompanyID, profile.CompanyName, profile.Description, profile.FoundingYear, profile.EmployeeRange,
		profile.Industry, profile.BusinessModel, profile.TargetAudience, profile.GeographicCoverage,
		pq.Array(profile.Emails), pq.Array(profile.Phones), profile.LinkedInURL, profile.WebsiteURL,
		profile.HeadquartersAddress, pq.Array(profile.SourceURLs), profile.AcceptsEmail, fullProfile,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("saving profile for %s: %w", profile.CompanyID, err)
	}

	if err := replaceAuxiliaryRows(ctx, tx, id, profile); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing profile save for %s: %w", profile.CompanyID, err)
	}
	return id, nil
}

// replaceAuxiliaryRows deletes and re-inserts every auxiliary table's rows
// for a profile, inside the caller's transaction.
func replaceAuxiliaryRows(ctx context.Context, tx *sql.Tx, profileID int64, profile CompanyProfile) error {
	for _, table := range []string{
		"profile_locations", "profile_services", "profile_product_categories",
		"profile_certifications", "profile_awards", "profile_partnerships",
	} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM sitescout.%s WHERE company_id = $1", table), profileID); err != nil {
			return fmt.Errorf("clearing %s for profile %d: %w", table, profileID, err)
		}
	}

	for _, loc := range profile.Locations {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sitescout.profile_locations (company_id, location) VALUES ($1, $2)`, profileID, loc); err != nil {
			return fmt.Errorf("inserting location for profile %d: %w", profileID, err)
		}
	}
	for _, svc := range profile.Services {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sitescout.profile_services (company_id, name, description) VALUES ($1, $2, $3)`, profileID, svc.Name, svc.Description); err != nil {
			return fmt.Errorf("inserting service for profile %d: %w", profileID, err)
		}
	}
	for _, cat := range profile.ProductCategories {
		products, err := json.Marshal(cat.Products)
		if err != nil {
			return fmt.Errorf("marshaling products for profile %d: %w", profileID, err)
		}
		var categoryID int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO sitescout.profile_product_categories (company_id, category, products) VALUES ($1, $2, $3)
			RETURNING id
		`, profileID, cat.Category, products).Scan(&categoryID)
		if err != nil {
			return fmt.Errorf("inserting product category for profile %d: %w", profileID, err)
		}
		for _, item := range cat.Products {
			if _, err := tx.ExecContext(ctx, `INSERT INTO sitescout.profile_product_items (category_id, name) VALUES ($1, $2)`, categoryID, item); err != nil {
				return fmt.Errorf("inserting product item for category %d: %w", categoryID, err)
			}
		}
	}
	for _, name := range profile.Certifications {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sitescout.profile_certifications (company_id, name) VALUES ($1, $2)`, profileID, name); err != nil {
			return fmt.Errorf("inserting certification for profile %d: %w", profileID, err)
		}
	}
	for _, name := range profile.Awards {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sitescout.profile_awards (company_id, name) VALUES ($1, $2)`, profileID, name); err != nil {
			return fmt.Errorf("inserting award for profile %d: %w", profileID, err)
		}
	}
	for _, name := range profile.Partnerships {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sitescout.profile_partnerships (company_id, name) VALUES ($1, $2)`, profileID, name); err != nil {
			return fmt.Errorf("inserting partnership for profile %d: %w", profileID, err)
		}
	}
	return nil
}

// GetProfile returns the assembled company profile (scalar columns plus
// every auxiliary table), or ErrNotFound if none exists.
func (r *Repository) GetProfile(ctx context.Context, companyID string) (*CompanyProfile, error) {
	var p CompanyProfile
	var id int64
	var emails, phones, sourceURLs []string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, company_id, company_name, description, founding_year, employee_range, industry,
		       business_model, target_audience, geographic_coverage, emails, phones, linkedin_url,
		       website_url, headquarters_address, source_urls, accepts_email
		FROM sitescout.company_profiles
		WHERE company_id = $1
	`, companyID).Scan(
		&id, &p.CompanyID, &p.CompanyName, &p.Description, &p.FoundingYear, &p.EmployeeRange, &p.Industry,
		&p.BusinessModel, &p.TargetAudience, &p.GeographicCoverage, pq.Array(&emails), pq.Array(&phones), &p.LinkedInURL,
		&p.WebsiteURL, &p.HeadquartersAddress, pq.Array(&sourceURLs), &p.AcceptsEmail,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading profile for %s: %w", companyID, err)
	}
	p.Emails, p.Phones, p.SourceURLs = emails, phones, sourceURLs

	if err := r.loadAuxiliaryRows(ctx, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) loadAuxiliaryRows(ctx context.Context, profileID int64, p *CompanyProfile) error {
	locRows, err := r.db.QueryContext(ctx, `SELECT location FROM sitescout.profile_locations WHERE company_id = $1`, profileID)
	if err != nil {
		return fmt.Errorf("loading locations for profile %d: %w", profileID, err)
	}
	defer locRows.Close()
	for locRows.Next() {
		var loc string
		if err := locRows.Scan(&loc); err != nil {
			return fmt.Errorf("scanning location for profile %d: %w", profileID, err)
		}
		p.Locations = append(p.Locations, loc)
	}

	svcRows, err := r.db.QueryContext(ctx, `SELECT name, description FROM sitescout.profile_services WHERE company_id = $1`, profileID)
	if err != nil {
		return fmt.Errorf("loading services for profile %d: %w", profileID, err)
	}
	defer svcRows.Close()
	for svcRows.Next() {
		var svc ProfileService
		var desc sql.NullString
		if err := svcRows.Scan(&svc.Name, &desc); err != nil {
			return fmt.Errorf("scanning service for profile %d: %w", profileID, err)
		}
		svc.Description = desc.String
		p.Services = append(p.Services, svc)
	}

	catRows, err := r.db.QueryContext(ctx, `SELECT id, category, products FROM sitescout.profile_product_categories WHERE company_id = $1`, profileID)
	if err != nil {
		return fmt.Errorf("loading product categories for profile %d: %w", profileID, err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var catID int64
		var cat ProductCategory
		var rawProducts []byte
		if err := catRows.Scan(&catID, &cat.Category, &rawProducts); err != nil {
			return fmt.Errorf("scanning product category for profile %d: %w", profileID, err)
		}
		if len(rawProducts) > 0 {
			_ = json.Unmarshal(rawProducts, &cat.Products)
		}
		p.ProductCategories = append(p.ProductCategories, cat)
	}

	for _, spec := range []struct {
		table string
		dest  *[]string
	}{
		{"profile_certifications", &p.Certifications},
		{"profile_awards", &p.Awards},
		{"profile_partnerships", &p.Partnerships},
	} {
		rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT name FROM sitescout.%s WHERE company_id = $1`, spec.table), profileID)
		if err != nil {
			return fmt.Errorf("loading %s for profile %d: %w", spec.table, profileID, err)
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return fmt.Errorf("scanning %s for profile %d: %w", spec.table, profileID, err)
			}
			*spec.dest = append(*spec.dest, name)
		}
		rows.Close()
	}
	return nil
}
