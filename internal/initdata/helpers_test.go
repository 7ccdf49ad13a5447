package initdata

import (
	"encoding/hex"
	"net/url"
	"strings"
)

func encodeWithHash(pairs []Pair, hash string) string {
	parts := make([]string, 0, len(pairs)+1)
	for _, pair := range pairs {
		parts = append(parts, url.QueryEscape(pair.Key)+"="+url.QueryEscape(pair.Value))
	}
	parts = append(parts, "hash="+hash)
	return strings.Join(parts, "&")
}

func upperHash(initData string) string {
	idx := strings.LastIndex(initData, "hash=")
	return initData[:idx] + "hash=" + strings.ToUpper(initData[idx+len("hash="):])
}

func hexString(b []byte) string {
	return hex.EncodeToString(b)
}
