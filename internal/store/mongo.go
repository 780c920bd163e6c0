package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/automatter/rfptrack/internal/apperr"
	"github.com/automatter/rfptrack/internal/identity"
)

// Mongo implements Store on a MongoDB database. Documents keep their
// Firestore-era shape: string _id, created/updated datetimes, authorId,
// and a parentId field scoping subcollection documents.
type Mongo struct {
	db        *mongo.Database
	opts      Options
	validator Validator
}

func NewMongo(db *mongo.Database, opts Options, validator Validator) *Mongo {
	return &Mongo{db: db, opts: opts, validator: validator}
}

func (m *Mongo) col(p Path) *mongo.Collection {
	return m.db.Collection(p.Collection)
}

func (m *Mongo) Get(ctx context.Context, path string, q QueryOptions) ([]Doc, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	filter := mongoFilter(p, q)
	findOpts := options.Find()
	if limit := q.limit(); limit > 0 {
		findOpts.SetLimit(int64(limit))
	}
	if q.Sort != "" {
		field, dir := parseSort(q.Sort)
		findOpts.SetSort(bson.D{{Key: field, Value: dir}})
	}
	if q.LastID != "" {
		if err := m.applyCursor(ctx, p, q, filter); err != nil {
			return nil, err
		}
	} else if q.page() > 1 {
		if limit := q.limit(); limit > 0 {
			findOpts.SetSkip(int64((q.page() - 1) * limit))
		}
	}

	cur, err := m.col(p).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, mapMongoErr(err)
	}
	defer cur.Close(ctx)

	results := []Doc{}
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, err
		}
		results = append(results, normalizeDoc(raw, m.opts.HiddenPrefix, q.ShowPrivate))
	}
	return results, cur.Err()
}

// applyCursor continues a paged listing after the given document, using
// the sort field when sorted and _id otherwise.
func (m *Mongo) applyCursor(ctx context.Context, p Path, q QueryOptions, filter bson.M) error {
	var last bson.M
	err := m.col(p).FindOne(ctx, bson.M{"_id": q.LastID}).Decode(&last)
	if err == mongo.ErrNoDocuments {
		return nil
	}
	if err != nil {
		return mapMongoErr(err)
	}
	if q.Sort != "" {
		field, dir := parseSort(q.Sort)
		op := "$gt"
		if dir < 0 {
			op = "$lt"
		}
		if v, ok := last[field]; ok {
			filter[field] = bson.M{op: v}
			return nil
		}
	}
	filter["_id"] = bson.M{"$gt": q.LastID}
	return nil
}

func (m *Mongo) Count(ctx context.Context, path string, q QueryOptions) (int64, error) {
	p, err := ParsePath(path)
	if err != nil {
		return 0, err
	}
	n, err := m.col(p).CountDocuments(ctx, mongoFilter(p, q))
	if err != nil {
		return 0, mapMongoErr(err)
	}
	return n, nil
}

func (m *Mongo) GetByID(ctx context.Context, path, id string) (Doc, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	var raw bson.M
	if key, ok := strings.CutPrefix(id, "k_"); ok {
		// k_-prefixed ids resolve by the document's natural key field
		err = m.col(p).FindOne(ctx, bson.M{"key": key}).Decode(&raw)
	} else {
		err = m.col(p).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	}
	if err != nil {
		return nil, mapMongoErr(err)
	}
	return normalizeDoc(raw, m.opts.HiddenPrefix, false), nil
}

func (m *Mongo) Post(ctx context.Context, path string, doc Doc, ident *identity.Identity) (Doc, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	stripped := stripSystem(doc)
	if m.validator != nil {
		if err := m.validator.Validate(p.Collection, stripped); err != nil {
			return nil, err
		}
	}
	data := coerceDoc(stripped)
	now := time.Now().UTC()
	data["_id"] = uuid.NewString()
	data["created"] = now
	data["updated"] = now
	if ident != nil {
		data["authorId"] = ident.UID
	}
	if p.ParentID != "" {
		data["parentId"] = p.ParentID
	}

	if _, err := m.col(p).InsertOne(ctx, data); err != nil {
		return nil, mapMongoErr(err)
	}
	var confirm bson.M
	if err := m.col(p).FindOne(ctx, bson.M{"_id": data["_id"]}).Decode(&confirm); err != nil {
		return nil, mapMongoErr(err)
	}
	return normalizeDoc(confirm, m.opts.HiddenPrefix, false), nil
}

func (m *Mongo) Patch(ctx context.Context, path, id string, partial Doc) (Doc, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	set := sanitize(partial)
	set["updated"] = time.Now().UTC()

	res, err := m.col(p).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return nil, mapMongoErr(err)
	}
	if res.MatchedCount == 0 {
		return nil, apperr.ErrNotFound
	}
	var updated bson.M
	if err := m.col(p).FindOne(ctx, bson.M{"_id": id}).Decode(&updated); err != nil {
		return nil, mapMongoErr(err)
	}
	return normalizeDoc(updated, m.opts.HiddenPrefix, false), nil
}

func (m *Mongo) Remove(ctx context.Context, path, id string) (string, error) {
	p, err := ParsePath(path)
	if err != nil {
		return "", err
	}
	res, err := m.col(p).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return "", mapMongoErr(err)
	}
	if res.DeletedCount == 0 {
		return "", apperr.ErrNotFound
	}
	return id, nil
}

func mongoFilter(p Path, q QueryOptions) bson.M {
	filter := bson.M{}
	if p.ParentID != "" {
		filter["parentId"] = p.ParentID
	}
	for field, value := range q.Filters {
		if value == nil || value == "" {
			continue
		}
		field = mongoField(field)
		for _, c := range filterConds(value) {
			switch c.op {
			case "eq":
				if arr, ok := c.value.([]interface{}); ok {
					filter[field] = bson.M{"$in": arr}
					continue
				}
				filter[field] = c.value
			default:
				rangeFilter, ok := filter[field].(bson.M)
				if !ok {
					rangeFilter = bson.M{}
					filter[field] = rangeFilter
				}
				rangeFilter["$"+c.op] = c.value
			}
		}
	}
	return filter
}

func parseSort(sort string) (string, int) {
	field, dir, _ := strings.Cut(sort, " ")
	if strings.EqualFold(dir, "desc") {
		return mongoField(field), -1
	}
	return mongoField(field), 1
}

func mongoField(field string) string {
	if field == "id" {
		return "_id"
	}
	return field
}

func mapMongoErr(err error) error {
	if err == mongo.ErrNoDocuments {
		return apperr.ErrNotFound
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == 13 {
		return apperr.Wrap(apperr.ErrPermissionDenied, "mongo")
	}
	return err
}
