// Package directory composes the peopledex subsystems into one facade: the
// people store, the lexical index, the vector snapshot, the embedding
// provider chain, the AI summarizer, and local query telemetry.
//
// The facade owns wiring and lifecycle. Opening a directory never fails just
// because a provider credential is missing; semantic features degrade to an
// explicit "not available" status instead.
//
// Example usage:
//
//	cfg, _ := config.Load(root)
//	dir, err := directory.Open(root, cfg)
//	if err != nil {
//		return err
//	}
//	defer dir.Close()
//
//	n, err := dir.LoadCorpus(ctx, cfg.ResolveCorpusPath(root))
//	results, err := dir.Search(ctx, "pricing", directory.Filters{})
package directory
