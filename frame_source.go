package litmuslab

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"go.viam.com/rdk/components/camera"

	"litmuslab/internal/sim"
)

// frameSource supplies one raw camera image per tick.
type frameSource interface {
	ReadFrame(ctx context.Context) (image.Image, error)
}

// cameraFrameSource reads decoded frames from a Viam camera component.
type cameraFrameSource struct {
	cam camera.Camera
}

func newCameraFrameSource(cam camera.Camera) *cameraFrameSource {
	return &cameraFrameSource{cam: cam}
}

func (s *cameraFrameSource) ReadFrame(ctx context.Context) (image.Image, error) {
	img, err := camera.DecodeImageFromCamera(ctx, s.cam, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("reading camera %q: %w", s.cam.Name().ShortName(), err)
	}
	return img, nil
}

// prepareFrame mirrors the camera image so on-screen motion matches the
// operator's, scales it to the bench size and returns a drawable copy.
func prepareFrame(img image.Image, mirror bool, width, height int) *image.RGBA {
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		img = imaging.Resize(img, width, height, imaging.Linear)
	}
	if mirror {
		img = imaging.FlipH(img)
	}
	return sim.ToRGBA(img)
}
