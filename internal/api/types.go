package api

import "mini-dynamo/internal/quorum"

// PutRequest is the body of POST /kv/put.
type PutRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

// DeleteRequest is the body of POST /kv/delete.
type DeleteRequest struct {
	Key string `json:"key" binding:"required"`
}

// quorumView renders a quorum.FanoutResult onto the wire as
// {acks, needed, results}.
type quorumView struct {
	Acks    int             `json:"acks"`
	Needed  int             `json:"needed"`
	Results map[string]bool `json:"results"`
}

func renderQuorum(r quorum.FanoutResult) quorumView {
	return quorumView{Acks: r.Acks, Needed: r.Needed, Results: r.Results}
}

// recordView renders a store.Record (or nil) onto the wire.
type recordView struct {
	Value     *string `json:"value"`
	Ts        float64 `json:"ts"`
	Tombstone bool    `json:"tombstone"`
}
