package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/search"
)

func TestIsBlacklistedDomainExactMatch(t *testing.T) {
	assert.True(t, IsBlacklistedDomain("https://cnpj.biz/empresa/123"))
}

func TestIsBlacklistedDomainSubdomain(t *testing.T) {
	assert.True(t, IsBlacklistedDomain("https://empresa.cnpj.biz/x"))
}

func TestIsBlacklistedDomainStripsWWWPrefix(t *testing.T) {
	assert.True(t, IsBlacklistedDomain("https://www.linkedin.com/company/acme"))
}

func TestIsBlacklistedDomainSchemeless(t *testing.T) {
	assert.True(t, IsBlacklistedDomain("facebook.com/acme"))
}

func TestIsBlacklistedDomainAllowsRealSite(t *testing.T) {
	assert.False(t, IsBlacklistedDomain("https://www.acme.com.br/sobre"))
}

func TestIsBlacklistedDomainEmptyIsFalse(t *testing.T) {
	assert.False(t, IsBlacklistedDomain(""))
}

func TestFilterSearchResultsDropsBlacklistedAndDuplicates(t *testing.T) {
	results := []search.Result{
		{Title: "Acme official", Link: "https://acme.com.br"},
		{Title: "Acme on LinkedIn", Link: "https://linkedin.com/company/acme"},
		{Title: "Acme dup", Link: "https://acme.com.br"},
		{Title: "Acme marketplace", Link: "https://mercadolivre.com.br/acme"},
	}

	filtered := FilterSearchResults(results)
	assert.Len(t, filtered, 1)
	assert.Equal(t, "https://acme.com.br", filtered[0].Link)
}
