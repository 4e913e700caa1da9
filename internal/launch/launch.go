package launch

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"mcpanel/internal/services"
)

// ServerType selects the server distribution the control plane provisions.
type ServerType string

const (
	TypeVanilla ServerType = "VANILLA"
	TypeFabric  ServerType = "FABRIC"
)

// ParseServerType accepts a case-insensitive server type name.
func ParseServerType(value string) (ServerType, error) {
	switch ServerType(strings.ToUpper(strings.TrimSpace(value))) {
	case TypeVanilla:
		return TypeVanilla, nil
	case TypeFabric:
		return TypeFabric, nil
	default:
		return "", &ValidationError{Field: "type", Message: fmt.Sprintf("unknown server type %q (want VANILLA or FABRIC)", value)}
	}
}

// Request is the configuration sent with a start action.
type Request struct {
	Type      ServerType `json:"type"`
	Version   string     `json:"version"`
	Datapacks []string   `json:"datapacks,omitempty"`
	Mods      []string   `json:"mods,omitempty"`
}

// Body is the wire shape of a start request. Lists are comma-joined.
type Body struct {
	Type      ServerType `json:"type"`
	Version   string     `json:"version"`
	Datapacks string     `json:"datapacks,omitempty"`
	Mods      string     `json:"mods,omitempty"`
}

// ValidationError reports a launch request that must not reach the network.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) ErrorKind() string { return "validation" }

func (e *ValidationError) Unwrap() error { return services.ErrValidation }

// Normalize trims whitespace, uppercases the type, and drops blank or
// duplicate datapack and mod entries while keeping first-seen order.
func (r Request) Normalize() Request {
	r.Type = ServerType(strings.ToUpper(strings.TrimSpace(string(r.Type))))
	r.Version = strings.TrimSpace(r.Version)
	r.Datapacks = dedupe(r.Datapacks)
	r.Mods = dedupe(r.Mods)
	return r
}

// Validate checks the request. The first problem found is returned as a
// *ValidationError.
func (r Request) Validate() error {
	switch r.Type {
	case TypeVanilla, TypeFabric:
	case "":
		return &ValidationError{Field: "type", Message: "server type is required"}
	default:
		return &ValidationError{Field: "type", Value: string(r.Type), Message: "want VANILLA or FABRIC"}
	}
	if r.Version == "" {
		return &ValidationError{Field: "version", Message: "version is required"}
	}
	if strings.ContainsAny(r.Version, " ,\t\n") {
		return &ValidationError{Field: "version", Value: r.Version, Message: "version must be a single token"}
	}
	if len(r.Mods) > 0 && r.Type != TypeFabric {
		return &ValidationError{Field: "mods", Message: "mods are only supported on FABRIC servers"}
	}
	for _, entry := range r.Datapacks {
		if err := ValidateURL("datapacks", entry); err != nil {
			return err
		}
	}
	for _, entry := range r.Mods {
		if err := ValidateURL("mods", entry); err != nil {
			return err
		}
	}
	return nil
}

// ValidateURL checks one datapack or mod reference. Entries are comma-joined
// on the wire, so a comma inside a URL is rejected.
func ValidateURL(field, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &ValidationError{Field: field, Message: "empty url"}
	}
	if strings.Contains(raw, ",") {
		return &ValidationError{Field: field, Value: raw, Message: "url must not contain a comma"}
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: field, Value: raw, Message: "please enter a valid url"}
	}
	scheme := strings.ToLower(parsed.Scheme)
	if (scheme != "http" && scheme != "https") || parsed.Host == "" {
		return &ValidationError{Field: field, Value: raw, Message: "please enter a valid url"}
	}
	return nil
}

// Body renders the wire payload for the control plane.
func (r Request) Body() Body {
	return Body{
		Type:      r.Type,
		Version:   r.Version,
		Datapacks: strings.Join(r.Datapacks, ","),
		Mods:      strings.Join(r.Mods, ","),
	}
}

// Prepare normalizes and validates r in one step.
func Prepare(r Request) (Request, error) {
	r = r.Normalize()
	if err := r.Validate(); err != nil {
		return r, err
	}
	return r, nil
}

// IsValidation reports whether err is a launch validation failure.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
