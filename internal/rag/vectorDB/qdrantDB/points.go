package qdrantDB

import (
	"fmt"
	"sort"
	"time"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/rag/vectorDB"
	"github.com/qdrant/go-client/qdrant"
)

func distanceFor(m vectorDB.Metric) qdrant.Distance {
	if m == vectorDB.L2 {
		return qdrant.Distance_Euclid
	}
	return qdrant.Distance_Cosine
}

func metricFor(d qdrant.Distance) vectorDB.Metric {
	if d == qdrant.Distance_Euclid {
		return vectorDB.L2
	}
	return vectorDB.Cosine
}

// toPoints carries document metadata on every point, the collection is the
// only thing persisted.
func toPoints(snap vectorDB.Snapshot) ([]*qdrant.PointStruct, error) {
	docs := make(map[string]commonModels.Document, len(snap.Documents))
	for _, d := range snap.Documents {
		docs[d.Id] = d
	}

	points := make([]*qdrant.PointStruct, len(snap.Entries))
	for i, e := range snap.Entries {
		doc := docs[e.Chunk.DocId]
		payload, err := qdrant.TryValueMap(map[string]any{
			"ordinal":       i,
			"chunk_id":      e.Id,
			"source_doc_id": e.Chunk.DocId,
			"doc_name":      e.Source,
			"chunk_order":   e.Position,
			"content":       e.Chunk.Text,
			"start":         e.Chunk.Start,
			"end":           e.Chunk.End,
			"ingested_at":   doc.UploadedAt.Unix(),
			"content_type":  string(doc.ContentType),
			"chunk_count":   doc.ChunkCount,
		})
		if err != nil {
			return nil, fmt.Errorf("entry %s payload: %w", e.Id, err)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(i)),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: payload,
		}
	}
	return points, nil
}

func fromPoints(points []*qdrant.RetrievedPoint, metric vectorDB.Metric, dim int) vectorDB.Snapshot {
	sort.Slice(points, func(i, j int) bool {
		return points[i].GetId().GetNum() < points[j].GetId().GetNum()
	})

	snap := vectorDB.Snapshot{Metric: metric, Dimension: dim}
	seen := map[string]bool{}
	for _, p := range points {
		pl := p.GetPayload()
		docId := pl["source_doc_id"].GetStringValue()

		entry := commonModels.IndexEntry{
			Id: pl["chunk_id"].GetStringValue(),
			Chunk: commonModels.Chunk{
				DocId:    docId,
				Position: int(pl["chunk_order"].GetIntegerValue()),
				Text:     pl["content"].GetStringValue(),
				Start:    int(pl["start"].GetIntegerValue()),
				End:      int(pl["end"].GetIntegerValue()),
			},
			Vector:   vectorOf(p),
			Source:   pl["doc_name"].GetStringValue(),
			Position: int(pl["chunk_order"].GetIntegerValue()),
		}
		snap.Entries = append(snap.Entries, entry)

		if !seen[docId] {
			seen[docId] = true
			snap.Documents = append(snap.Documents, commonModels.Document{
				Id:          docId,
				Name:        entry.Source,
				UploadedAt:  time.Unix(pl["ingested_at"].GetIntegerValue(), 0).UTC(),
				ContentType: commonModels.DocType(pl["content_type"].GetStringValue()),
				ChunkCount:  int(pl["chunk_count"].GetIntegerValue()),
			})
		}
	}
	return snap
}

func vectorOf(p *qdrant.RetrievedPoint) []float32 {
	v := p.GetVectors().GetVector()
	if dense := v.GetDense(); dense != nil {
		return dense.GetData()
	}
	return v.GetData()
}
