package config

// DirectoryConfig configures the user directory.
type DirectoryConfig struct {
	// SuperAdminDomains lists email domains whose users are promoted to
	// super admin on sign-in. Empty disables the promotion.
	SuperAdminDomains []string
}

func loadDirectoryConfig() DirectoryConfig {
	return DirectoryConfig{
		SuperAdminDomains: getEnvStringSlice("SUPER_ADMIN_DOMAINS", nil),
	}
}
