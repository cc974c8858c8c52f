package orchestration

// MergeProfiles consolidates several partial profiles (one per scraped
// chunk) into a single profile. It picks the most complete profile as a
// base, then backfills any field the base left empty from the other
// profiles, preferring the longest value for scalar text fields and
// deduplicating list fields.
//
// Schema-specific field normalization and merge heuristics are out of
// this pipeline's scope (spec.md §1); this is a minimal, clearly-labeled
// default, not a tuned production merge — grounded on the shape of
// profile_merger.py's merge_profiles (completeness-scored base,
// backfill-from-others) without its Portuguese-schema-specific field
// rules.
func MergeProfiles(profiles []CompanyProfile) CompanyProfile {
	if len(profiles) == 0 {
		return CompanyProfile{}
	}
	if len(profiles) == 1 {
		return profiles[0]
	}

	baseIdx := 0
	baseScore := completenessScore(profiles[0])
	for i := 1; i < len(profiles); i++ {
		if s := completenessScore(profiles[i]); s > baseScore {
			baseIdx, baseScore = i, s
		}
	}

	merged := profiles[baseIdx]
	for i, p := range profiles {
		if i == baseIdx {
			continue
		}
		mergeScalars(&merged, p)
		merged.Emails = mergeUnique(merged.Emails, p.Emails)
		merged.Phones = mergeUnique(merged.Phones, p.Phones)
		merged.SourceURLs = mergeUnique(merged.SourceURLs, p.SourceURLs)
		merged.Locations = mergeUnique(merged.Locations, p.Locations)
		merged.Certifications = mergeUnique(merged.Certifications, p.Certifications)
		merged.Awards = mergeUnique(merged.Awards, p.Awards)
		merged.Partnerships = mergeUnique(merged.Partnerships, p.Partnerships)
		merged.Services = mergeServices(merged.Services, p.Services)
		merged.ProductCategories = mergeProductCategories(merged.ProductCategories, p.ProductCategories)
	}
	return merged
}

// completenessScore counts populated scalar fields (the description
// scores one point per 40 characters instead of one) plus the total
// length of every list field, mirroring profile_merger.py's
// _score_completeness.
func completenessScore(p CompanyProfile) int {
	score := 0
	if p.CompanyName != "" {
		score++
	}
	if p.Description != "" {
		score += len(p.Description) / 40
	}
	if p.Industry != "" {
		score++
	}
	if p.BusinessModel != "" {
		score++
	}
	if p.TargetAudience != "" {
		score++
	}
	if p.GeographicCoverage != "" {
		score++
	}
	if p.LinkedInURL != "" {
		score++
	}
	if p.WebsiteURL != "" {
		score++
	}
	if p.HeadquartersAddress != "" {
		score++
	}
	if p.EmployeeRange != "" {
		score++
	}
	if p.FoundingYear != nil {
		score++
	}
	score += len(p.Emails) + len(p.Phones) + len(p.SourceURLs) + len(p.Locations)
	score += len(p.Certifications) + len(p.Awards) + len(p.Partnerships)
	score += len(p.Services) + len(p.ProductCategories)
	return score
}

// mergeScalars fills any empty scalar field on dst from src, preferring
// the longer of the two for text fields already populated on both.
func mergeScalars(dst *CompanyProfile, src CompanyProfile) {
	dst.CompanyName = preferLonger(dst.CompanyName, src.CompanyName)
	dst.Description = preferLonger(dst.Description, src.Description)
	dst.EmployeeRange = preferLonger(dst.EmployeeRange, src.EmployeeRange)
	dst.Industry = preferLonger(dst.Industry, src.Industry)
	dst.BusinessModel = preferLonger(dst.BusinessModel, src.BusinessModel)
	dst.TargetAudience = preferLonger(dst.TargetAudience, src.TargetAudience)
	dst.GeographicCoverage = preferLonger(dst.GeographicCoverage, src.GeographicCoverage)
	dst.LinkedInURL = preferLonger(dst.LinkedInURL, src.LinkedInURL)
	dst.WebsiteURL = preferLonger(dst.WebsiteURL, src.WebsiteURL)
	dst.HeadquartersAddress = preferLonger(dst.HeadquartersAddress, src.HeadquartersAddress)
	if dst.FoundingYear == nil {
		dst.FoundingYear = src.FoundingYear
	}
	dst.AcceptsEmail = dst.AcceptsEmail || src.AcceptsEmail
}

func preferLonger(current, candidate string) string {
	if candidate == "" {
		return current
	}
	if current == "" || len(candidate) > len(current) {
		return candidate
	}
	return current
}

func mergeUnique(current, additional []string) []string {
	seen := make(map[string]struct{}, len(current))
	merged := make([]string, 0, len(current)+len(additional))
	for _, v := range current {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		merged = append(merged, v)
	}
	for _, v := range additional {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		merged = append(merged, v)
	}
	return merged
}

func mergeServices(current, additional []ProfileService) []ProfileService {
	byName := make(map[string]int, len(current))
	merged := make([]ProfileService, len(current))
	copy(merged, current)
	for i, s := range merged {
		byName[s.Name] = i
	}
	for _, s := range additional {
		if s.Name == "" {
			continue
		}
		if i, ok := byName[s.Name]; ok {
			merged[i].Description = preferLonger(merged[i].Description, s.Description)
			continue
		}
		byName[s.Name] = len(merged)
		merged = append(merged, s)
	}
	return merged
}

func mergeProductCategories(current, additional []ProductCategory) []ProductCategory {
	byCategory := make(map[string]int, len(current))
	merged := make([]ProductCategory, len(current))
	copy(merged, current)
	for i, c := range merged {
		byCategory[c.Category] = i
	}
	for _, c := range additional {
		if c.Category == "" {
			continue
		}
		if i, ok := byCategory[c.Category]; ok {
			merged[i].Products = mergeUnique(merged[i].Products, c.Products)
			continue
		}
		byCategory[c.Category] = len(merged)
		merged = append(merged, c)
	}
	return merged
}
