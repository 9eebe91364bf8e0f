package certvault

import "strings"

// RegistrableDomain normalizes a website address down to the bare hostname
// used for matching against certificate names: scheme, path, port and a
// leading "www." are stripped, and the result is lowercased.
func RegistrableDomain(site string) string {
	s := strings.TrimSpace(strings.ToLower(site))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 && !strings.Contains(s[i+1:], "]") {
		if !strings.Contains(s, "]") || i > strings.Index(s, "]") {
			s = s[:i]
		}
	}
	s = strings.TrimSuffix(s, ".")
	s = strings.TrimPrefix(s, "www.")
	return s
}

// HostMatchesCert reports whether a normalized hostname is covered by the
// certificate's subject names, including one-label wildcard entries.
func HostMatchesCert(host string, dnsNames []string, commonName string) bool {
	host = RegistrableDomain(host)
	if host == "" {
		return false
	}
	names := dnsNames
	if commonName != "" {
		names = append(append([]string{}, dnsNames...), commonName)
	}
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == host {
			return true
		}
		if strings.HasPrefix(name, "*.") {
			suffix := name[1:]
			if strings.HasSuffix(host, suffix) && !strings.Contains(strings.TrimSuffix(host, suffix), ".") {
				return true
			}
		}
	}
	return false
}
