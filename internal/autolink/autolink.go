// Package autolink turns plain-text URLs and email addresses inside HTML
// fragments into anchors.
//
// The rewrite works on the raw markup with two regular expression passes and
// does not parse the fragment, so addresses inside attribute values are
// matched as well.
package autolink

import (
	"regexp"
	"strings"
)

// Class is set on every anchor the rewrite inserts.
const Class = "magic"

// Domain-like body with a 2-4 letter top-level label. Longer TLDs are not
// recognised. Letters are spelled out as ASCII ranges because (?i) would
// also fold characters like U+212A KELVIN SIGN onto them.
const domain = `[-_.A-Za-z0-9]{2,256}\.[A-Za-z]{2,4}(?:/[A-Za-z0-9:%_+.~#?&/=]*)?`

// Whitespace as browsers match \s, including no-break and wide spaces.
const space = `\s\v\x{a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}`

var (
	urlPattern = regexp.MustCompile(`([` + space + `(/])((?:[Hh][Tt][Tt][Pp]([Ss]?)://)?(` + domain + `))`)
	urlAnchor  = `${1}<a href="http${3}://${4}" class="` + Class + `">${2}</a>`

	mailPattern = regexp.MustCompile(`(?:[Mm][Aa][Ii][Ll][Tt][Oo]:)?([-A-Za-z0-9%_+.~#/=]+@[-A-Za-z0-9%_+.~#?&/=]{2,256}\.[A-Za-z]{2,4}(?:\?[-A-Za-z0-9:%_+.~#?&/=]*)?)`)
)

// Autolink returns fragment with URLs and mail addresses wrapped in anchors.
// location is the address of the embedding page, used as the subject of
// generated mail links. Unmatched content is returned byte-identical.
func Autolink(fragment, location string) string {
	return Mails(URLs(fragment), location)
}

// URLs wraps domain-like tokens preceded by whitespace, '(' or '/'. The
// boundary character stays outside the anchor and a missing scheme defaults
// to http.
func URLs(fragment string) string {
	return urlPattern.ReplaceAllString(fragment, urlAnchor)
}

// Mails wraps mail addresses, consuming an optional mailto: prefix.
func Mails(fragment, location string) string {
	subject := strings.ReplaceAll(EncodeURI(location), "$", "$$")
	return mailPattern.ReplaceAllString(fragment,
		`<a href="mailto:${1}?subject=`+subject+`" class="`+Class+`">${0}</a>`)
}

const uriUnescaped = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789" +
	";,/?:@&=+$-_.!~*'()#"

// EncodeURI percent-encodes s like ECMAScript encodeURI: reserved and
// unreserved characters are kept, every other byte is escaped.
func EncodeURI(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(uriUnescaped, c) >= 0 {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte("0123456789ABCDEF"[c>>4])
		sb.WriteByte("0123456789ABCDEF"[c&15])
	}
	return sb.String()
}
