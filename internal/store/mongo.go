package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "tsgate/pkg/errors"
	"tsgate/internal/storemodel"
)

type messageDoc struct {
	Sequence  int64     `bson:"sequence"`
	Timestamp time.Time `bson:"timestamp"`
	Payload   []byte    `bson:"payload"`
}

type messageBatchDoc struct {
	StreamName      string       `bson:"stream_name"`
	StreamDirection string       `bson:"stream_direction"`
	FirstTimestamp  time.Time    `bson:"first_timestamp"`
	LastTimestamp   time.Time    `bson:"last_timestamp"`
	Messages        []messageDoc `bson:"messages"`
}

type eventDoc struct {
	EventId   string    `bson:"event_id"`
	BatchId   string    `bson:"batch_id,omitempty"`
	ParentId  string    `bson:"parent_event_id,omitempty"`
	Start     time.Time `bson:"start"`
	End       time.Time `bson:"end"`
	Name      string    `bson:"name,omitempty"`
	EventType string    `bson:"type,omitempty"`
	Body      []byte    `bson:"body,omitempty"`
}

// MongoGateway is the concrete StoreGateway backing for a real deployment.
// The store itself is an external collaborator per spec.md section 1; this
// adapter only translates queries, it holds no business logic.
type MongoGateway struct {
	db *mongo.Database
}

func NewMongoGateway(db *mongo.Database) *MongoGateway {
	return &MongoGateway{db: db}
}

func (g *MongoGateway) events() *mongo.Collection {
	return g.db.Collection("events")
}

func (g *MongoGateway) batches() *mongo.Collection {
	return g.db.Collection("message_batches")
}

func sortOrder(dir storemodel.Direction) int {
	if dir == storemodel.DirectionBefore {
		return -1
	}
	return 1
}

func (g *MongoGateway) GetEvents(ctx context.Context, start, end time.Time, dir storemodel.Direction) ([]storemodel.EventWrapper, error) {
	filter := bson.M{"start": bson.M{"$gte": start, "$lte": end}}
	return g.queryEvents(ctx, filter, dir)
}

func (g *MongoGateway) GetEventsFromResume(ctx context.Context, resumeId storemodel.ProviderEventId, end time.Time, dir storemodel.Direction) ([]storemodel.EventWrapper, error) {
	resumeEvent, found, err := g.GetEvent(ctx, resumeId)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.ErrNotFound.WithDetail("message", "resume event not found")
	}
	start := resumeEvent.Timestamp(dir)
	filter := bson.M{"start": bson.M{"$gte": start, "$lte": end}}
	return g.queryEvents(ctx, filter, dir)
}

func (g *MongoGateway) GetEventsToResume(ctx context.Context, start time.Time, resumeId storemodel.ProviderEventId, dir storemodel.Direction) ([]storemodel.EventWrapper, error) {
	resumeEvent, found, err := g.GetEvent(ctx, resumeId)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.ErrNotFound.WithDetail("message", "resume event not found")
	}
	end := resumeEvent.Timestamp(dir)
	filter := bson.M{"start": bson.M{"$gte": start, "$lte": end}}
	return g.queryEvents(ctx, filter, dir)
}

func (g *MongoGateway) queryEvents(ctx context.Context, filter bson.M, dir storemodel.Direction) ([]storemodel.EventWrapper, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start", Value: sortOrder(dir)}})
	cur, err := g.events().Find(ctx, filter, opts)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreTransient)
	}
	defer cur.Close(ctx)

	batches := map[string]*storemodel.BatchEvent{}
	var order []string
	var singles []storemodel.EventWrapper

	for cur.Next(ctx) {
		var doc eventDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrStoreFatal)
		}
		single := docToSingle(doc)

		if doc.BatchId == "" {
			singles = append(singles, storemodel.WrapSingle(single))
			continue
		}
		b, ok := batches[doc.BatchId]
		if !ok {
			b = &storemodel.BatchEvent{BatchId: doc.BatchId, ParentId: single.ParentId}
			batches[doc.BatchId] = b
			order = append(order, doc.BatchId)
		}
		b.TestEvents = append(b.TestEvents, single)
	}
	if err := cur.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreTransient)
	}

	result := make([]storemodel.EventWrapper, 0, len(singles)+len(order))
	result = append(result, singles...)
	for _, id := range order {
		result = append(result, storemodel.WrapBatch(*batches[id]))
	}
	return result, nil
}

func (g *MongoGateway) GetEvent(ctx context.Context, id storemodel.ProviderEventId) (storemodel.EventWrapper, bool, error) {
	if id.IsBatched() {
		event, found, err := g.GetEventFromBatch(ctx, id.BatchId, id.EventId)
		if err != nil || !found {
			return storemodel.EventWrapper{}, found, err
		}
		return storemodel.WrapSingle(event), true, nil
	}

	var doc eventDoc
	err := g.events().FindOne(ctx, bson.M{"event_id": string(id.EventId)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return storemodel.EventWrapper{}, false, nil
	}
	if err != nil {
		return storemodel.EventWrapper{}, false, apperrors.Wrap(err, apperrors.ErrStoreTransient)
	}
	return storemodel.WrapSingle(docToSingle(doc)), true, nil
}

func (g *MongoGateway) GetEventBatch(ctx context.Context, batchId string) (storemodel.BatchEvent, bool, error) {
	cur, err := g.events().Find(ctx, bson.M{"batch_id": batchId}, options.Find().SetSort(bson.D{{Key: "start", Value: 1}}))
	if err != nil {
		return storemodel.BatchEvent{}, false, apperrors.Wrap(err, apperrors.ErrStoreTransient)
	}
	defer cur.Close(ctx)

	var batch storemodel.BatchEvent
	batch.BatchId = batchId
	for cur.Next(ctx) {
		var doc eventDoc
		if err := cur.Decode(&doc); err != nil {
			return storemodel.BatchEvent{}, false, apperrors.Wrap(err, apperrors.ErrStoreFatal)
		}
		single := docToSingle(doc)
		batch.ParentId = single.ParentId
		batch.TestEvents = append(batch.TestEvents, single)
	}
	if len(batch.TestEvents) == 0 {
		return storemodel.BatchEvent{}, false, nil
	}
	return batch, true, nil
}

// GetEventFromBatch implements the Open Questions decision in DESIGN.md:
// return the event when present in the batch, (zero, false, nil) when
// absent — a positive-sense membership check, not the inverted condition
// named in spec.md.
func (g *MongoGateway) GetEventFromBatch(ctx context.Context, batchId string, eventId storemodel.EventId) (storemodel.SingleEvent, bool, error) {
	var doc eventDoc
	err := g.events().FindOne(ctx, bson.M{"batch_id": batchId, "event_id": string(eventId)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return storemodel.SingleEvent{}, false, nil
	}
	if err != nil {
		return storemodel.SingleEvent{}, false, apperrors.Wrap(err, apperrors.ErrStoreTransient)
	}
	return docToSingle(doc), true, nil
}

func (g *MongoGateway) GetMessageBatches(ctx context.Context, stream storemodel.StreamKey, dir storemodel.Direction, from *storemodel.MessageId, bound *time.Time) ([]storemodel.MessageBatch, error) {
	filter := bson.M{"stream_name": stream.Name, "stream_direction": string(stream.Direction)}

	tsField := "last_timestamp"
	cmp := "$gte"
	if dir == storemodel.DirectionBefore {
		tsField = "first_timestamp"
		cmp = "$lte"
	}
	if from != nil {
		filter[tsField] = bson.M{cmp: from.Timestamp}
	}
	if bound != nil {
		boundOp := "$lte"
		if dir == storemodel.DirectionBefore {
			boundOp = "$gte"
		}
		existing, _ := filter[tsField].(bson.M)
		if existing == nil {
			existing = bson.M{}
		}
		existing[boundOp] = *bound
		filter[tsField] = existing
	}

	opts := options.Find().SetSort(bson.D{{Key: "first_timestamp", Value: sortOrder(dir)}})
	cur, err := g.batches().Find(ctx, filter, opts)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreTransient)
	}
	defer cur.Close(ctx)

	var result []storemodel.MessageBatch
	for cur.Next(ctx) {
		var doc messageBatchDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrStoreFatal)
		}
		result = append(result, docToBatch(stream, doc))
	}
	if err := cur.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreTransient)
	}
	return result, nil
}

func (g *MongoGateway) GetMessage(ctx context.Context, id storemodel.MessageId) (storemodel.Message, bool, error) {
	filter := bson.M{
		"stream_name":      id.Stream.Name,
		"stream_direction": string(id.Stream.Direction),
		"messages.sequence": id.Sequence,
	}
	var doc messageBatchDoc
	err := g.batches().FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return storemodel.Message{}, false, nil
	}
	if err != nil {
		return storemodel.Message{}, false, apperrors.Wrap(err, apperrors.ErrStoreTransient)
	}
	for _, m := range doc.Messages {
		if m.Sequence == id.Sequence {
			return storemodel.Message{
				Id:      storemodel.MessageId{Stream: id.Stream, Sequence: m.Sequence, Timestamp: m.Timestamp},
				Payload: m.Payload,
			}, true, nil
		}
	}
	return storemodel.Message{}, false, nil
}

func (g *MongoGateway) GetFirstMessageId(ctx context.Context, ts time.Time, stream storemodel.StreamKey, dir storemodel.Direction, relation FirstMessageRelation) (*storemodel.MessageId, error) {
	batches, err := g.GetMessageBatches(ctx, stream, dir, nil, nil)
	if err != nil {
		return nil, err
	}
	for _, batch := range batches {
		for _, m := range orderedMessages(batch, dir) {
			switch relation {
			case RelationAtOrAfter:
				if !m.Id.Timestamp.Before(ts) {
					id := m.Id
					return &id, nil
				}
			case RelationAtOrBefore:
				if !m.Id.Timestamp.After(ts) {
					id := m.Id
					return &id, nil
				}
			}
		}
	}
	return nil, nil
}

func orderedMessages(b storemodel.MessageBatch, dir storemodel.Direction) []storemodel.Message {
	if dir == storemodel.DirectionBefore {
		return b.Reverse()
	}
	return b.InOrder()
}

func (g *MongoGateway) GetFirstMessageSequence(ctx context.Context, stream storemodel.StreamKey, dir storemodel.Direction) (int64, error) {
	batches, err := g.GetMessageBatches(ctx, stream, dir, nil, nil)
	if err != nil {
		return 0, err
	}
	for _, batch := range batches {
		msgs := orderedMessages(batch, dir)
		if len(msgs) > 0 {
			return msgs[0].Id.Sequence, nil
		}
	}
	return 0, apperrors.ErrNotFound
}

func (g *MongoGateway) GetEventIds(ctx context.Context, id storemodel.MessageId) ([]storemodel.EventId, error) {
	cur, err := g.events().Find(ctx, bson.M{"attached_message_ids": id.String()})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreTransient)
	}
	defer cur.Close(ctx)

	var ids []storemodel.EventId
	for cur.Next(ctx) {
		var doc eventDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrStoreFatal)
		}
		ids = append(ids, storemodel.EventId(doc.EventId))
	}
	return ids, cur.Err()
}

func (g *MongoGateway) GetMessageIds(ctx context.Context, id storemodel.EventId) ([]storemodel.MessageId, error) {
	var doc struct {
		AttachedMessageIds []string `bson:"attached_message_ids"`
	}
	err := g.events().FindOne(ctx, bson.M{"event_id": string(id)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreTransient)
	}

	ids := make([]storemodel.MessageId, 0, len(doc.AttachedMessageIds))
	for _, raw := range doc.AttachedMessageIds {
		msgId, ok := parseMessageIdString(raw)
		if !ok {
			continue
		}
		ids = append(ids, msgId)
	}
	return ids, nil
}

// parseMessageIdString reverses storemodel.MessageId.String() ("stream:
// direction/sequence"), the opaque form attached_message_ids are stored
// as. Timestamp is left zero since String() never encodes it; a caller
// needing the full record still resolves it via GetMessage.
func parseMessageIdString(raw string) (storemodel.MessageId, bool) {
	streamPart, seqPart, ok := strings.Cut(raw, "/")
	if !ok {
		return storemodel.MessageId{}, false
	}
	name, dir, ok := strings.Cut(streamPart, ":")
	if !ok {
		return storemodel.MessageId{}, false
	}
	seq, err := strconv.ParseInt(seqPart, 10, 64)
	if err != nil {
		return storemodel.MessageId{}, false
	}
	return storemodel.MessageId{
		Stream:   storemodel.StreamKey{Name: name, Direction: storemodel.StreamSubDirection(dir)},
		Sequence: seq,
	}, true
}

func docToSingle(doc eventDoc) storemodel.SingleEvent {
	single := storemodel.SingleEvent{
		Id:       storemodel.EventId(doc.EventId),
		ParentId: storemodel.EventId(doc.ParentId),
		Start:    doc.Start,
		End:      doc.End,
	}
	if doc.Name != "" || doc.EventType != "" || len(doc.Body) > 0 {
		single.Content = &storemodel.EventContent{Name: doc.Name, Type: doc.EventType, Body: doc.Body}
	}
	return single
}

func docToBatch(stream storemodel.StreamKey, doc messageBatchDoc) storemodel.MessageBatch {
	messages := make([]storemodel.Message, len(doc.Messages))
	for i, m := range doc.Messages {
		messages[i] = storemodel.Message{
			Id:      storemodel.MessageId{Stream: stream, Sequence: m.Sequence, Timestamp: m.Timestamp},
			Payload: m.Payload,
		}
	}
	return storemodel.MessageBatch{Stream: stream, Messages: messages}
}
