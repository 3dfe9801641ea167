package paths

import "github.com/murmurchat/murmur/internal/config"

const DefaultProfileName = "main"

// Resolve determines the active profile name using precedence:
// 1. flagOverride (--profile flag)
// 2. MURMUR_PROFILE environment variable
// 3. config.toml default_profile
// 4. "main"
func Resolve(flagOverride, envOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if envOverride != "" {
		return envOverride
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && cfg.DefaultProfile != "" {
		return cfg.DefaultProfile
	}
	return DefaultProfileName
}
