package commands

import "strings"

// parseArgs splits command tokens into positional args, "--key value" /
// "--key=value" flags, and bare "--key" booleans.
func parseArgs(tokens []string) (args []string, flags map[string]string, bools map[string]bool) {
	flags = map[string]string{}
	bools = map[string]bool{}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !strings.HasPrefix(tok, "--") {
			args = append(args, tok)
			continue
		}
		key := strings.TrimPrefix(tok, "--")
		if key == "" {
			continue
		}
		if k, v, ok := strings.Cut(key, "="); ok {
			flags[strings.ToLower(k)] = v
			continue
		}
		// "--key value" unless the next token is another flag.
		if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "--") {
			flags[strings.ToLower(key)] = tokens[i+1]
			i++
			continue
		}
		bools[strings.ToLower(key)] = true
	}
	return args, flags, bools
}
