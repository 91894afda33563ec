package discovery

import (
	"sort"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// StringsToTXTRecords parses "key=value" strings. Keys are case-insensitive
// and stored lowercase; entries without "=" are boolean attributes with an
// empty value. The first occurrence of a key wins.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap, len(strs))
	for _, s := range strs {
		if s == "" {
			continue
		}
		key, value, _ := strings.Cut(s, "=")
		key = strings.ToLower(key)
		if _, dup := txt[key]; dup {
			continue
		}
		txt[key] = value
	}
	return txt
}

// TXTRecordsToStrings formats the map as sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	out := make([]string, 0, len(txt))
	for k, v := range txt {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// EncodeEndpointTXT builds the TXT record a server advertises for ep.
func EncodeEndpointTXT(ep *Endpoint) TXTRecordMap {
	txt := make(TXTRecordMap)
	if ep.Path != "" && ep.Path != "/" {
		txt[TXTKeyPath] = ep.Path
	}
	if ep.TLS {
		txt[TXTKeyTLS] = "1"
	}
	if ep.Codec != "" {
		txt[TXTKeyCodec] = ep.Codec
	}
	return txt
}

// applyTXT fills the TXT-derived fields of ep.
func applyTXT(ep *Endpoint, txt TXTRecordMap) {
	ep.Path = txt[TXTKeyPath]
	switch strings.ToLower(txt[TXTKeyTLS]) {
	case "1", "true", "yes":
		ep.TLS = true
	}
	ep.Codec = strings.ToLower(txt[TXTKeyCodec])
}
