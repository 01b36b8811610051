package security

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"polyagent/internal/config"
)

// maxPIIMappings bounds one sanitizer; past it the mapping table starts over.
const maxPIIMappings = 1000

// piiKind is one class of personal data and its placeholder label.
type piiKind struct {
	label   string
	pattern *regexp.Regexp
}

// Specific patterns run first so a card or SSN is not half-eaten by the phone pattern.
var (
	emailKind = piiKind{"EMAIL", regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)}
	cardKind  = piiKind{"CARD", regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)}
	ssnKind   = piiKind{"SSN", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)}
	ipKind    = piiKind{"IP", regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)}
	phoneKind = piiKind{"PHONE", regexp.MustCompile(`(?:\+?\d{1,3}[-.\s]?)?\(?\d{2,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{3,4}`)}
)

// Sanitizer swaps personal data for numbered placeholders such as [EMAIL_1] before
// text reaches a provider, and swaps them back in replies. The same value always
// gets the same placeholder within one Sanitizer.
type Sanitizer struct {
	kinds []piiKind

	mu        sync.Mutex
	byValue   map[string]string // original → placeholder
	byHolder  map[string]string // placeholder → original
	counter   map[string]int
	restoreFn *strings.Replacer
}

// NewSanitizer builds a sanitizer from config. A disabled config yields a
// sanitizer that returns text unchanged.
func NewSanitizer(cfg config.PIIFilterConfig) *Sanitizer {
	s := &Sanitizer{}
	if cfg.Enabled {
		for _, k := range []struct {
			on   bool
			kind piiKind
		}{
			{cfg.FilterEmails, emailKind},
			{cfg.FilterCards, cardKind},
			{cfg.FilterSSN, ssnKind},
			{cfg.FilterIPs, ipKind},
			{cfg.FilterPhones, phoneKind},
		} {
			if k.on {
				s.kinds = append(s.kinds, k.kind)
			}
		}
	}
	s.reset()
	return s
}

func (s *Sanitizer) reset() {
	s.byValue = make(map[string]string)
	s.byHolder = make(map[string]string)
	s.counter = make(map[string]int)
	s.restoreFn = nil
}

// Enabled reports whether any filter is active.
func (s *Sanitizer) Enabled() bool { return len(s.kinds) > 0 }

// Sanitize replaces personal data in text with placeholders.
func (s *Sanitizer) Sanitize(text string) string {
	if !s.Enabled() {
		return text
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.byValue) >= maxPIIMappings {
		s.reset()
	}

	for _, k := range s.kinds {
		text = k.pattern.ReplaceAllStringFunc(text, func(match string) string {
			if holder, ok := s.byValue[match]; ok {
				return holder
			}
			s.counter[k.label]++
			holder := fmt.Sprintf("[%s_%d]", k.label, s.counter[k.label])
			s.byValue[match] = holder
			s.byHolder[holder] = match
			s.restoreFn = nil
			return holder
		})
	}
	return text
}

// Restore puts the original values back in place of known placeholders.
func (s *Sanitizer) Restore(text string) string {
	if !s.Enabled() {
		return text
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.byHolder) == 0 {
		return text
	}
	if s.restoreFn == nil {
		pairs := make([]string, 0, 2*len(s.byHolder))
		for holder, original := range s.byHolder {
			pairs = append(pairs, holder, original)
		}
		s.restoreFn = strings.NewReplacer(pairs...)
	}
	return s.restoreFn.Replace(text)
}

// Fork returns a sanitizer with the same filters and an empty mapping table, so
// concurrent runs never see each other's values.
func (s *Sanitizer) Fork() *Sanitizer {
	f := &Sanitizer{kinds: s.kinds}
	f.reset()
	return f
}

// Reset forgets every mapping.
func (s *Sanitizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}
