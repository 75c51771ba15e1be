package surface

import "fmt"

// Face names one of the six cube faces a tile is draped onto.
type Face string

const (
	FacePosZ Face = "pz"
	FacePosX Face = "px"
	FaceNegZ Face = "nz"
	FacePosY Face = "py"
	FaceNegX Face = "nx"
	FaceNegY Face = "ny"
)

// Faces is the round-robin order tiles are assigned to faces in.
var Faces = [6]Face{FacePosZ, FacePosX, FaceNegZ, FacePosY, FaceNegX, FaceNegY}

// FaceAt returns the face for the idx-th visible tile.
func FaceAt(idx int) Face {
	return Faces[((idx%len(Faces))+len(Faces))%len(Faces)]
}

func ParseFace(s string) (Face, error) {
	for _, f := range Faces {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown face %q", s)
}

func (f Face) String() string {
	return string(f)
}
