package models

import "time"

// GraphNode is the presentation form of a segment in the story graph.
type GraphNode struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GraphEdge is the presentation form of an edge in the story graph.
type GraphEdge struct {
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"created_at"`
}

// Graph is the materialized story graph returned by the graph endpoint.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}
