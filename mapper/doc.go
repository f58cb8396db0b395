// Package mapper moves entities in and out of storage.
//
// An ObjectMapper restores entities from plain records (Convert) and runs
// them through two fixed pipelines built on pipeline.Builder:
//
//	save:   expect Entity -> extract -> before-save -> persist -> apply -> after-save
//	delete: expect Identifiable -> before-delete -> persist -> after-delete
//
// The storage call is supplied per call and bound into the "persist" stub:
//
//	m := mapper.New(mapper.WithLogger(log))
//	err := m.Save(ctx, func(ctx context.Context, batch []entity.PlainData) ([]entity.PlainData, error) {
//	    return store.Save(ctx, batch)
//	}, users)
//
// The persist function sees the whole batch once and returns results by
// position; result i is applied to entity i.
package mapper
