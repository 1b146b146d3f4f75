// Package preset holds the catalog of communication presets: named bundles
// of serial parameters (baud, framing, inversion) known to work with a
// meter family.
//
// The Catalog is an ordered in-memory view used by detection. It is filled
// from DefaultPresets or loaded from SQLite through a Repository:
//
//	repo := preset.NewSQLiteRepository(db.DB)
//	if _, err := preset.SeedDefaults(ctx, repo, logger); err != nil {
//	    return err
//	}
//	catalog := preset.NewCatalog(repo, preset.DefaultPresets())
//	if err := catalog.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
// Detection only reads the catalog.
package preset
