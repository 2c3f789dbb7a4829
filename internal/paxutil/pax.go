// Package paxutil encodes and decodes PAX extended header records and
// tracks the long name/link state that GNU and PAX extension entries
// attach to the archive member that follows them.
package paxutil

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Keys defined by POSIX.1-2001 that this codec interprets. Any other key
// is carried through opaquely.
const (
	KeyPath     = "path"
	KeyLinkpath = "linkpath"
	KeySize     = "size"
	KeyUID      = "uid"
	KeyGID      = "gid"
	KeyUname    = "uname"
	KeyGname    = "gname"
	KeyMtime    = "mtime"
)

// ErrRecord is reported for malformed PAX record data.
var ErrRecord = errors.New("invalid pax record")

// EncodeRecord renders one record in the wire format "%d %s=%s\n" where the
// leading length counts the entire record including itself.
func EncodeRecord(key, value string) (string, error) {
	if strings.ContainsAny(key, "=\x00") || strings.Contains(key, "\n") {
		return "", fmt.Errorf("%w: bad key %q", ErrRecord, key)
	}
	// " key=value\n" plus the decimal length of the whole record. The
	// length field's own width feeds back into the total, so grow it
	// until it is consistent.
	size := len(key) + len(value) + 3 // space, '=', newline
	size += len(strconv.Itoa(size))
	record := strconv.Itoa(size) + " " + key + "=" + value + "\n"
	if len(record) != size {
		size = len(record)
		record = strconv.Itoa(size) + " " + key + "=" + value + "\n"
	}
	return record, nil
}

// EncodeRecords renders a whole record set in sorted key order so encoded
// output is deterministic.
func EncodeRecords(records map[string]string) ([]byte, error) {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		rec, err := EncodeRecord(k, records[k])
		if err != nil {
			return nil, err
		}
		sb.WriteString(rec)
	}
	return []byte(sb.String()), nil
}

// ParseRecords decodes the payload of a PAX extended header entry into a
// key/value map. Later records for the same key win; a record with an empty
// value deletes the key, per the PAX specification.
func ParseRecords(data []byte, into map[string]string) (map[string]string, error) {
	if into == nil {
		into = make(map[string]string)
	}
	s := string(data)
	for len(s) > 0 {
		sp := strings.IndexByte(s, ' ')
		if sp <= 0 {
			return into, ErrRecord
		}
		n, err := strconv.Atoi(s[:sp])
		if err != nil || n < sp+3 || n > len(s) {
			return into, ErrRecord
		}
		if s[n-1] != '\n' {
			return into, ErrRecord
		}
		rec := s[sp+1 : n-1]
		s = s[n:]

		eq := strings.IndexByte(rec, '=')
		if eq == -1 {
			return into, ErrRecord
		}
		key, value := rec[:eq], rec[eq+1:]
		if value == "" {
			delete(into, key)
		} else {
			into[key] = value
		}
	}
	return into, nil
}

// FormatTime renders seconds (and nanoseconds if present) as a PAX time
// value.
func FormatTime(sec int64, nsec int) string {
	if nsec == 0 {
		return strconv.FormatInt(sec, 10)
	}
	frac := strings.TrimRight(fmt.Sprintf("%09d", nsec), "0")
	return strconv.FormatInt(sec, 10) + "." + frac
}

// ParseTime parses a PAX "%d.%d" time value into seconds and nanoseconds.
func ParseTime(s string) (sec int64, nsec int64, err error) {
	ss, sn := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		ss, sn = s[:i], s[i+1:]
	}
	if ss != "" {
		sec, err = strconv.ParseInt(ss, 10, 64)
		if err != nil {
			return 0, 0, ErrRecord
		}
	}
	if sn != "" {
		if strings.Trim(sn, "0123456789") != "" {
			return 0, 0, ErrRecord
		}
		const nanoDigits = 9
		if len(sn) < nanoDigits {
			sn += strings.Repeat("0", nanoDigits-len(sn))
		} else {
			sn = sn[:nanoDigits]
		}
		nsec, _ = strconv.ParseInt(sn, 10, 64)
		if sec < 0 {
			nsec = -nsec
		}
	}
	return sec, nsec, nil
}

// Pending accumulates extension entries until the next real archive member
// consumes them. GNU long name/link entries and PAX records feed the same
// slot; PAX values take precedence when both are present.
type Pending struct {
	gnuName string
	gnuLink string
	records map[string]string
}

// SetGNUName records a GNU long-name ('L') entry payload.
func (p *Pending) SetGNUName(name string) { p.gnuName = name }

// SetGNULink records a GNU long-link ('K') entry payload.
func (p *Pending) SetGNULink(link string) { p.gnuLink = link }

// MergeRecords parses a PAX extended header payload into the pending
// record set.
func (p *Pending) MergeRecords(data []byte) error {
	m, err := ParseRecords(data, p.records)
	p.records = m
	return err
}

// Name resolves the pending long name, if any. PAX path wins over a GNU
// long-name entry.
func (p *Pending) Name() (string, bool) {
	if v, ok := p.records[KeyPath]; ok {
		return v, true
	}
	if p.gnuName != "" {
		return p.gnuName, true
	}
	return "", false
}

// Link resolves the pending long link target, if any, with the same
// precedence as Name.
func (p *Pending) Link() (string, bool) {
	if v, ok := p.records[KeyLinkpath]; ok {
		return v, true
	}
	if p.gnuLink != "" {
		return p.gnuLink, true
	}
	return "", false
}

// Records returns the pending PAX records, or nil if none were seen.
func (p *Pending) Records() map[string]string { return p.records }

// Empty reports whether no extension data is pending.
func (p *Pending) Empty() bool {
	return p.gnuName == "" && p.gnuLink == "" && len(p.records) == 0
}

// Reset clears all pending state. Called after the state is applied to a
// real archive member.
func (p *Pending) Reset() {
	*p = Pending{}
}
