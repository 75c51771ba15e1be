package dto

import (
	"encoding/base64"
	"time"

	"github.com/pissang/little-big-city/internal/mesh"
	"github.com/pissang/little-big-city/internal/pipeline"
	"github.com/pissang/little-big-city/internal/scene"
)

// ViewRequest moves the map center. Pointers let 0 pass the required check.
type ViewRequest struct {
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
	Lat *float64 `json:"lat" validate:"required,gte=-85,lte=85"`
}

func (r ViewRequest) View() pipeline.View {
	return pipeline.View{Lng: *r.Lng, Lat: *r.Lat}
}

// ConfigRequest adjusts scene settings. Omitted fields keep their value.
type ConfigRequest struct {
	Radius           *float64          `json:"radius" validate:"omitempty,gte=30,lte=100"`
	Curveness        *float64          `json:"curveness" validate:"omitempty,gt=0,lte=1"`
	EarthDepth       *float64          `json:"earthDepth" validate:"omitempty,gte=1,lte=50"`
	Colors           map[string]string `json:"colors" validate:"omitempty,dive,keys,oneof=earth buildings roads water clouds,endkeys,hexcolor"`
	Visible          map[string]bool   `json:"visible" validate:"omitempty,dive,keys,oneof=earth buildings roads water clouds,endkeys"`
	RegenerateClouds bool              `json:"regenerateClouds"`
}

func (r ConfigRequest) Update() pipeline.Update {
	u := pipeline.Update{
		Radius:           r.Radius,
		Curveness:        r.Curveness,
		EarthDepth:       r.EarthDepth,
		RegenerateClouds: r.RegenerateClouds,
	}
	if len(r.Colors) > 0 {
		u.Colors = make(map[scene.Node]string, len(r.Colors))
		for node, c := range r.Colors {
			u.Colors[scene.Node(node)] = c
		}
	}
	if len(r.Visible) > 0 {
		u.Visible = make(map[scene.Node]bool, len(r.Visible))
		for node, v := range r.Visible {
			u.Visible[scene.Node(node)] = v
		}
	}
	return u
}

type ViewResponse struct {
	View  pipeline.View  `json:"view"`
	Stats pipeline.Stats `json:"stats"`
}

type SceneResponse struct {
	Entries []scene.Summary `json:"entries"`
}

// MeshResponse carries mesh buffers as base64 little-endian arrays.
type MeshResponse struct {
	Node       scene.Node     `json:"node"`
	Key        string         `json:"key"`
	Material   scene.Material `json:"material"`
	Version    uint64         `json:"version"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	Vertices   int            `json:"vertices"`
	IndexWidth int            `json:"indexWidth"`
	Position   string         `json:"position"`
	Normal     string         `json:"normal"`
	UV         string         `json:"uv,omitempty"`
	Indices    string         `json:"indices"`
}

func NewMeshResponse(e scene.Entry) MeshResponse {
	enc := base64.StdEncoding
	resp := MeshResponse{
		Node:       e.Node,
		Key:        e.Key,
		Material:   e.Material,
		Version:    e.Version,
		UpdatedAt:  e.UpdatedAt,
		Vertices:   e.Mesh.VertexCount(),
		IndexWidth: e.Mesh.IndexWidth(),
		Position:   enc.EncodeToString(mesh.EncodeFloats(e.Mesh.Position)),
		Normal:     enc.EncodeToString(mesh.EncodeFloats(e.Mesh.Normal)),
		Indices:    enc.EncodeToString(e.Mesh.EncodeIndices()),
	}
	if len(e.Mesh.UV) > 0 {
		resp.UV = enc.EncodeToString(mesh.EncodeFloats(e.Mesh.UV))
	}
	return resp
}
