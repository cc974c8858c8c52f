package orchestration

import (
	"strings"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/search"
)

// blacklistDomains are domains that are never the official site of the
// company being searched for: company-data aggregators, social networks,
// marketplaces, and translation/cache proxies. Ported from
// discovery_service.py's BLACKLIST_DOMAINS.
var blacklistDomains = map[string]struct{}{
	// Company-data aggregators.
	"econodata.com.br": {}, "cnpj.biz": {}, "cnpja.com": {}, "cnpj.info": {},
	"cnpjs.rocks": {}, "casadosdados.com.br": {}, "empresascnpj.com": {},
	"consultacnpj.com": {}, "informecadastral.com.br": {}, "cadastroempresa.com.br": {},
	"transparencia.cc": {}, "listamais.com.br": {}, "solutudo.com.br": {},
	"telelistas.net": {}, "apontador.com.br": {}, "guiamais.com.br": {},
	"construtora.net.br": {}, "b2bleads.com.br": {}, "empresas.serasaexperian.com.br": {},
	"jusbrasil.com.br": {}, "jusdados.com": {},
	// Social networks.
	"facebook.com": {}, "instagram.com": {}, "linkedin.com": {}, "youtube.com": {},
	"twitter.com": {}, "x.com": {}, "tiktok.com": {}, "pinterest.com": {}, "threads.net": {},
	// Marketplaces.
	"mercadolivre.com.br": {}, "shopee.com.br": {}, "olx.com.br": {}, "amazon.com.br": {},
	"magazineluiza.com.br": {}, "americanas.com.br": {},
	// Translation/cache proxies.
	"translate.google.com": {}, "webcache.googleusercontent.com": {},
}

// IsBlacklistedDomain reports whether url's host (after stripping a
// www./m./mobile. prefix) is, or is a subdomain of, a blacklisted domain.
// A malformed url is treated as not blacklisted, matching the original's
// fail-open behavior.
func IsBlacklistedDomain(url string) bool {
	if url == "" {
		return false
	}

	host := url
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	host = strings.ToLower(host)
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}

	for _, prefix := range []string{"www.", "m.", "mobile."} {
		host = strings.TrimPrefix(host, prefix)
	}
	if host == "" {
		return false
	}

	for domain := range blacklistDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// FilterSearchResults drops blacklisted and duplicate-link results,
// preserving the order of first occurrence. Grounded on discovery_service.py's
// _filter_search_results.
func FilterSearchResults(results []search.Result) []search.Result {
	seen := make(map[string]struct{}, len(results))
	filtered := make([]search.Result, 0, len(results))
	for _, r := range results {
		if _, dup := seen[r.Link]; dup {
			continue
		}
		seen[r.Link] = struct{}{}
		if IsBlacklistedDomain(r.Link) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}
