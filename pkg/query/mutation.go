package query

import (
	"context"
	"fmt"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
	"github.com/theory-cloud/docquery/pkg/validation"
)

// RefFieldName returns the field Ref sets on the base document for a related collection
func RefFieldName(relatedCollection string) string {
	return relatedCollection + RefSuffix
}

// Insert creates a document in the collection and remembers its id for Ref
func (b *Builder) Insert(ctx context.Context, data map[string]any) (*Builder, error) {
	if b.scoped && b.documentID == "" {
		return b, errors.NewQueryError("insert", b.collection, errors.ErrMissingDocumentID)
	}
	id, err := b.gateway.CreateDocument(ctx, b.collection, data)
	if err != nil {
		return b, err
	}
	b.lastWritten = id
	return b, nil
}

// Update merges data into the scoped document and remembers its id for Ref
func (b *Builder) Update(ctx context.Context, data map[string]any) (*Builder, error) {
	if b.documentID == "" {
		return b, errors.NewQueryError("update", b.collection, errors.ErrMissingDocumentID)
	}
	if err := b.gateway.UpdateDocument(ctx, b.collection, b.documentID, data); err != nil {
		return b, err
	}
	b.lastWritten = b.documentID
	return b, nil
}

// InsertOrUpdate updates the scoped document, or inserts when the builder has no document id
func (b *Builder) InsertOrUpdate(ctx context.Context, data map[string]any) (*Builder, error) {
	if b.scoped || b.documentID != "" {
		return b.Update(ctx, data)
	}
	return b.Insert(ctx, data)
}

// Delete removes the scoped document
func (b *Builder) Delete(ctx context.Context) error {
	if b.documentID == "" {
		return errors.NewQueryError("delete", b.collection, errors.ErrMissingDocumentID)
	}
	return b.gateway.DeleteDocument(ctx, b.collection, b.documentID)
}

// LastWritten returns the id recorded by the last Insert or Update, or ""
func (b *Builder) LastWritten() string {
	return b.lastWritten
}

// Ref links the last written document to a document of relatedCollection.
//
// When relationData carries the relation key (userId by default), the first related
// document with the same value is updated, otherwise a new one is created. The base
// document then gets a reference field named <relatedCollection>Ref.
func (b *Builder) Ref(ctx context.Context, relatedCollection string, relationData map[string]any) (*Builder, error) {
	if b.lastWritten == "" {
		return b, errors.NewQueryError("ref", b.collection, errors.ErrRefWithoutWrite)
	}
	if err := validation.ValidateCollectionName(relatedCollection); err != nil {
		return b, errors.NewQueryError("ref", b.collection, fmt.Errorf("%w: %w", errors.ErrInvalidArguments, err))
	}

	relatedID, err := b.upsertRelated(ctx, relatedCollection, relationData)
	if err != nil {
		return b, err
	}

	link := map[string]any{
		RefFieldName(relatedCollection): core.Reference{Collection: relatedCollection, ID: relatedID},
	}
	if err := b.gateway.UpdateDocument(ctx, b.collection, b.lastWritten, link); err != nil {
		return b, err
	}
	return b, nil
}

func (b *Builder) upsertRelated(ctx context.Context, relatedCollection string, relationData map[string]any) (string, error) {
	if key, ok := relationData[b.relationKey]; ok && key != nil {
		existing, err := b.gateway.QueryCollection(ctx, &core.CompiledQuery{
			Collection: relatedCollection,
			Filter:     core.Clause{Field: b.relationKey, Op: core.OpEqual, Value: key},
			Limit:      1,
		})
		if err != nil {
			return "", err
		}
		if len(existing) > 0 {
			id := existing[0].ID()
			if err := b.gateway.UpdateDocument(ctx, relatedCollection, id, relationData); err != nil {
				return "", err
			}
			return id, nil
		}
	}
	return b.gateway.CreateDocument(ctx, relatedCollection, relationData)
}
