package config

import "time"

// SiteConfig customizes crawling for one host.
type SiteConfig struct {
	// Cookie is sent with every request to the host ("name=value; ...").
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra request headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Strategy overrides the fetch strategy, e.g. "browser" for sites that
	// render their content with JavaScript.
	Strategy string `yaml:"strategy,omitempty"`

	// Delay overrides the politeness delay for the host.
	Delay time.Duration `yaml:"delay,omitempty"`

	// IgnorePatterns are glob patterns matched against the URL path; matching
	// URLs are not crawled.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, when set, restrict crawling to matching paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// KeywordSource describes where keywords come from in the config file.
type KeywordSource struct {
	// File is a keyword file path ("Group keyword_with_underscores" lines).
	File string `yaml:"file,omitempty"`

	// Format is "group-first" (default) or "term-first".
	Format string `yaml:"format,omitempty"`

	// Groups lists keywords inline: group name → terms.
	Groups map[string][]string `yaml:"groups,omitempty"`
}

// File is the structure of the .sitesift configuration file.
type File struct {
	// Defaults apply to every host unless a site entry overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps a host (as in the seed URL, e.g. "www.example.fi") to its
	// overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Boilerplate replaces the default boilerplate phrase list when non-empty.
	Boilerplate []string `yaml:"boilerplate,omitempty"`

	// ErrorPhrases replaces the default error-page phrase list when non-empty.
	ErrorPhrases []string `yaml:"errorPhrases,omitempty"`

	// Keywords configures the relevance filter vocabulary.
	Keywords KeywordSource `yaml:"keywords,omitempty"`
}

// GetSiteConfig merges the entry for host over the defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	if cf == nil {
		return SiteConfig{}
	}
	result := cf.Defaults
	if len(result.Headers) > 0 {
		headers := make(map[string]string, len(result.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	site, ok := cf.Sites[host]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.Strategy != "" {
		result.Strategy = site.Strategy
	}
	if site.Delay != 0 {
		result.Delay = site.Delay
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	return result
}

// Apply copies phrase lists and the keyword file into c. A keyword file
// already set on c wins. Inline keyword groups stay in SiteConfigs.
func (cf *File) Apply(c *Config) {
	if cf == nil {
		return
	}
	c.SiteConfigs = cf
	if len(cf.Boilerplate) > 0 {
		c.BoilerplatePhrases = cf.Boilerplate
	}
	if len(cf.ErrorPhrases) > 0 {
		c.ErrorPhrases = cf.ErrorPhrases
	}
	if cf.Keywords.File != "" && c.KeywordFile == "" {
		c.KeywordFormat = cf.Keywords.Format
		c.KeywordFile = cf.Keywords.File
	}
}
