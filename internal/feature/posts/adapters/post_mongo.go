package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"foodshare_backend/internal/feature/posts/domain/entity"
	"foodshare_backend/internal/feature/posts/usecase"
	"foodshare_backend/internal/platform/geo"
)

// PostCollection is the collection holding food posts.
const PostCollection = "foodposts"

// geoJSONPoint is a GeoJSON Point as stored under a 2dsphere index.
type geoJSONPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"` // [longitude, latitude]
}

// postDocument is the MongoDB representation of a post.
type postDocument struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	DonorID     int64         `bson:"donor"`
	Description string        `bson:"description"`
	ImageURL    string        `bson:"imageUrl"`
	Labels      []string      `bson:"labels,omitempty"`
	Location    geoJSONPoint  `bson:"location"`
	CreatedAt   time.Time     `bson:"createdAt"`
}

func toGeoJSON(p geo.Point) geoJSONPoint {
	return geoJSONPoint{Type: "Point", Coordinates: []float64{p.Longitude, p.Latitude}}
}

func (d *postDocument) toEntity() entity.Post {
	var loc geo.Point
	if len(d.Location.Coordinates) >= 2 {
		loc = geo.Point{Longitude: d.Location.Coordinates[0], Latitude: d.Location.Coordinates[1]}
	}
	return entity.Post{
		ID:          d.ID.Hex(),
		DonorID:     uint(d.DonorID),
		Description: d.Description,
		ImageURL:    d.ImageURL,
		Labels:      d.Labels,
		Location:    loc,
		CreatedAt:   d.CreatedAt,
	}
}

// postMongo is a MongoDB implementation of the post store.
// Radius queries run on the collection's 2dsphere index.
type postMongo struct {
	coll *mongo.Collection
}

var _ usecase.PostRepository = (*postMongo)(nil)

// NewPostMongo creates a post store on the food posts collection of db.
func NewPostMongo(db *mongo.Database) *postMongo {
	return &postMongo{coll: db.Collection(PostCollection)}
}

// EnsureIndexes creates the 2dsphere location index and the donor index.
func (r *postMongo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "donor", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create post indexes: %w", err)
	}
	return nil
}

// Create inserts the post and sets its ID to the generated ObjectID.
func (r *postMongo) Create(ctx context.Context, post *entity.Post) error {
	doc := postDocument{
		ID:          bson.NewObjectID(),
		DonorID:     int64(post.DonorID),
		Description: post.Description,
		ImageURL:    post.ImageURL,
		Labels:      post.Labels,
		Location:    toGeoJSON(post.Location),
		CreatedAt:   post.CreatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return err
	}
	post.ID = doc.ID.Hex()
	return nil
}

// FindByDonor returns the donor's posts, newest first.
func (r *postMongo) FindByDonor(ctx context.Context, donorID uint) ([]entity.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, bson.D{{Key: "donor", Value: int64(donorID)}}, opts)
}

// FindByIDs returns the posts that still exist among ids. Malformed ids are ignored.
func (r *postMongo) FindByIDs(ctx context.Context, ids []string) ([]entity.Post, error) {
	oids := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := bson.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: oids}}}})
}

// All returns every stored post.
func (r *postMongo) All(ctx context.Context) ([]entity.Post, error) {
	return r.find(ctx, bson.D{})
}

// FindWithin runs a $geoWithin/$centerSphere query; the sphere radius is expressed in radians.
func (r *postMongo) FindWithin(ctx context.Context, center geo.Point, radiusKm float64) ([]entity.Post, error) {
	filter := bson.D{{Key: "location", Value: bson.D{{Key: "$geoWithin", Value: bson.D{
		{Key: "$centerSphere", Value: bson.A{
			bson.A{center.Longitude, center.Latitude},
			geo.RadiusToRadians(radiusKm),
		}},
	}}}}}
	return r.find(ctx, filter)
}

// UpdateOwned runs a single FindOneAndUpdate scoped to {_id, donor}.
func (r *postMongo) UpdateOwned(ctx context.Context, id string, donorID uint, upd entity.PostUpdate) (*entity.Post, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, usecase.ErrPostNotFound
	}
	filter := bson.D{{Key: "_id", Value: oid}, {Key: "donor", Value: int64(donorID)}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "description", Value: upd.Description},
		{Key: "location", Value: toGeoJSON(upd.Location)},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc postDocument
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, usecase.ErrPostNotFound
		}
		return nil, err
	}
	p := doc.toEntity()
	return &p, nil
}

// DeleteOwned runs a single FindOneAndDelete scoped to {_id, donor}.
func (r *postMongo) DeleteOwned(ctx context.Context, id string, donorID uint) (*entity.Post, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, usecase.ErrPostNotFound
	}
	filter := bson.D{{Key: "_id", Value: oid}, {Key: "donor", Value: int64(donorID)}}

	var doc postDocument
	if err := r.coll.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, usecase.ErrPostNotFound
		}
		return nil, err
	}
	p := doc.toEntity()
	return &p, nil
}

// DeleteAll removes every post document.
func (r *postMongo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *postMongo) find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) ([]entity.Post, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var docs []postDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]entity.Post, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toEntity())
	}
	return out, nil
}
