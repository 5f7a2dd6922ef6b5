package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// parseYAML parses the specific two-level mapping used by config.yaml
func parseYAML(r io.Reader, cfg *Config) error {
	type section int
	const (
		none section = iota
		db
		rd
		rm
		mt
		sv
	)

	scanner := bufio.NewScanner(r)
	var cur section

	lineNo := 0
	seenTop := map[section]bool{}

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()

		// strip comments
		if i := strings.IndexByte(raw, '#'); i >= 0 {
			raw = raw[:i]
		}

		line := strings.TrimRight(raw, " \t\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		// top-level section? (no leading spaces)
		if len(line) > 0 && (line[0] != ' ' && line[0] != '\t') {
			switch strings.TrimSpace(line) {
			case "database:":
				cur = db
				if seenTop[db] {
					return fmt.Errorf("line %d: duplicate 'database' section", lineNo)
				}
				seenTop[db] = true
			case "redis:":
				cur = rd
				if seenTop[rd] {
					return fmt.Errorf("line %d: duplicate 'redis' section", lineNo)
				}
				seenTop[rd] = true
			case "rabbitmq:":
				cur = rm
				if seenTop[rm] {
					return fmt.Errorf("line %d: duplicate 'rabbitmq' section", lineNo)
				}
				seenTop[rm] = true
			case "matching:":
				cur = mt
				if seenTop[mt] {
					return fmt.Errorf("line %d: duplicate 'matching' section", lineNo)
				}
				seenTop[mt] = true
			case "services:":
				cur = sv
				if seenTop[sv] {
					return fmt.Errorf("line %d: duplicate 'services' section", lineNo)
				}
				seenTop[sv] = true
			default:
				return fmt.Errorf("line %d: unknown top-level key %q", lineNo, strings.TrimSuffix(strings.TrimSpace(line), ":"))
			}
			continue
		}

		// expect indented "key: value"
		if cur == none {
			return fmt.Errorf("line %d: key without a section", lineNo)
		}
		trim := strings.TrimSpace(line)
		colon := strings.IndexByte(trim, ':')
		if colon <= 0 {
			return fmt.Errorf("line %d: expected 'key: value'", lineNo)
		}
		key := strings.TrimSpace(trim[:colon])
		val := strings.TrimLeft(strings.TrimSpace(trim[colon+1:]), " \t")

		switch cur {
		case db:
			switch key {
			case "host":
				cfg.Database.Host = resolveScalar(val)
			case "port":
				p, err := intScalar(val)
				if err != nil {
					return fmt.Errorf("line %d: database.port must be int: %v", lineNo, err)
				}
				cfg.Database.Port = p
			case "user":
				cfg.Database.User = resolveScalar(val)
			case "password":
				cfg.Database.Password = resolveScalar(val)
			case "database":
				cfg.Database.Name = resolveScalar(val)
			default:
				return fmt.Errorf("line %d: unknown key in database: %q", lineNo, key)
			}
		case rd:
			switch key {
			case "host":
				cfg.Redis.Host = resolveScalar(val)
			case "port":
				p, err := intScalar(val)
				if err != nil {
					return fmt.Errorf("line %d: redis.port must be int: %v", lineNo, err)
				}
				cfg.Redis.Port = p
			case "password":
				cfg.Redis.Password = resolveScalar(val)
			case "db":
				p, err := intScalar(val)
				if err != nil {
					return fmt.Errorf("line %d: redis.db must be int: %v", lineNo, err)
				}
				cfg.Redis.DB = p
			default:
				return fmt.Errorf("line %d: unknown key in redis: %q", lineNo, key)
			}
		case rm:
			switch key {
			case "host":
				cfg.RabbitMQ.Host = resolveScalar(val)
			case "port":
				p, err := intScalar(val)
				if err != nil {
					return fmt.Errorf("line %d: rabbitmq.port must be int: %v", lineNo, err)
				}
				cfg.RabbitMQ.Port = p
			case "user":
				cfg.RabbitMQ.User = resolveScalar(val)
			case "password":
				cfg.RabbitMQ.Password = resolveScalar(val)
			default:
				return fmt.Errorf("line %d: unknown key in rabbitmq: %q", lineNo, key)
			}
		case mt:
			switch key {
			case "enabled":
				b, err := boolScalar(val)
				if err != nil {
					return fmt.Errorf("line %d: matching.enabled must be bool: %v", lineNo, err)
				}
				cfg.Matching.Enabled = b
			case "driver_response_seconds":
				p, err := intScalar(val)
				if err != nil {
					return fmt.Errorf("line %d: matching.driver_response_seconds must be int: %v", lineNo, err)
				}
				cfg.Matching.DriverResponseSeconds = p
			case "broadcast_seconds":
				p, err := intScalar(val)
				if err != nil {
					return fmt.Errorf("line %d: matching.broadcast_seconds must be int: %v", lineNo, err)
				}
				cfg.Matching.BroadcastSeconds = p
			case "retry_delay_seconds":
				p, err := intScalar(val)
				if err != nil {
					return fmt.Errorf("line %d: matching.retry_delay_seconds must be int: %v", lineNo, err)
				}
				cfg.Matching.RetryDelaySeconds = p
			case "max_delivery_attempts":
				p, err := intScalar(val)
				if err != nil {
					return fmt.Errorf("line %d: matching.max_delivery_attempts must be int: %v", lineNo, err)
				}
				cfg.Matching.MaxDeliveryAttempts = p
			case "dead_letter_threshold":
				p, err := intScalar(val)
				if err != nil {
					return fmt.Errorf("line %d: matching.dead_letter_threshold must be int: %v", lineNo, err)
				}
				cfg.Matching.DeadLetterThreshold = p
			case "min_session_ttl_seconds":
				p, err := intScalar(val)
				if err != nil {
					return fmt.Errorf("line %d: matching.min_session_ttl_seconds must be int: %v", lineNo, err)
				}
				cfg.Matching.MinSessionTTLSeconds = p
			case "forced_expiry_seconds":
				p, err := intScalar(val)
				if err != nil {
					return fmt.Errorf("line %d: matching.forced_expiry_seconds must be int: %v", lineNo, err)
				}
				cfg.Matching.ForcedExpirySeconds = p
			default:
				return fmt.Errorf("line %d: unknown key in matching: %q", lineNo, key)
			}
		case sv:
			switch key {
			case "matching_service":
				p, err := intScalar(val)
				if err != nil {
					return fmt.Errorf("line %d: services.matching_service must be int: %v", lineNo, err)
				}
				cfg.Services.MatchingServicePort = p
			case "prefetch":
				p, err := intScalar(val)
				if err != nil {
					return fmt.Errorf("line %d: services.prefetch must be int: %v", lineNo, err)
				}
				cfg.Services.Prefetch = p
			default:
				return fmt.Errorf("line %d: unknown key in services: %q", lineNo, key)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	return nil
}

func intScalar(val string) (int, error) {
	return strconv.Atoi(resolveScalar(val))
}

func boolScalar(val string) (bool, error) {
	return strconv.ParseBool(resolveScalar(val))
}

// resolveScalar trims whitespace and removes surrounding quotes from YAML-like scalars.
// For example:
//
//	"localhost"  -> localhost
//	'password123' -> password123
//	localhost     -> localhost
func resolveScalar(s string) string {
	s = strings.TrimSpace(s)

	// if value is quoted with "..." or '...', remove quotes safely
	n := len(s)
	if n >= 2 {
		if (s[0] == '"' && s[n-1] == '"') || (s[0] == '\'' && s[n-1] == '\'') {
			if unq, err := strconv.Unquote(s); err == nil {
				return unq
			}
			// fallback if strconv.Unquote fails (e.g., mismatched quotes)
			return s[1 : n-1]
		}
	}

	return s
}
