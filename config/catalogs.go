package config

import _ "embed"

// Default catalogs compiled into the binaries. BADGE_CATALOG_PATH and
// CURRICULUM_CATALOG_PATH replace them at startup.
var (
	//go:embed catalogs/badges.yaml
	DefaultBadgeCatalog []byte

	//go:embed catalogs/curriculum.yaml
	DefaultCurriculumCatalog []byte
)
