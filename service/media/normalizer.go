package media

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/google/uuid"
	env "github.com/imposting/publish-core/configuration"
)

// BackgroundFinder locates a content-relevant background image for a text
// post and stages it as a local file. Implemented by the Pexels client.
type BackgroundFinder interface {
	FindBackground(ctx context.Context, text string) (string, error)
}

const (
	cardFontSize        = 40.0
	cardPadding         = 40.0
	cardLineHeight      = cardFontSize * 1.5
	backgroundBlurSigma = 8.0
)

// Normalizer produces a platform-ready image at a fixed aspect ratio from
// either a supplied image or free text. Output is reproducible for
// identical inputs (same bytes, font, dimensions).
type Normalizer struct {
	canvasWidth  int
	canvasHeight int
	fontPath     string
	backgrounds  BackgroundFinder
}

func NewNormalizer(backgrounds BackgroundFinder) *Normalizer {
	cfg := env.GetEnvConfigs()
	return &Normalizer{
		canvasWidth:  cfg.ImageCanvasWidth,
		canvasHeight: cfg.ImageCanvasHeight,
		fontPath:     cfg.ImageFontPath,
		backgrounds:  backgrounds,
	}
}

func NewNormalizerWithCanvas(backgrounds BackgroundFinder, width int, height int, fontPath string) *Normalizer {
	return &Normalizer{
		canvasWidth:  width,
		canvasHeight: height,
		fontPath:     fontPath,
		backgrounds:  backgrounds,
	}
}

// Normalize returns the path of a platform-ready image. When imagePath is
// given the file is resized-and-center-cropped in place; when only text is
// given a text card is composited over a blurred background fetched from
// the image-search collaborator.
func (n *Normalizer) Normalize(ctx context.Context, imagePath string, text string) (string, error) {
	if imagePath != "" {
		return n.resizeToCanvas(imagePath)
	}
	if text != "" {
		return n.composeTextImage(ctx, text)
	}
	return "", fmt.Errorf("image or text must be provided")
}

// resizeToCanvas scales whichever dimension constrains less and crops the
// overflow symmetrically from the centre.
func (n *Normalizer) resizeToCanvas(imagePath string) (string, error) {
	img, err := imaging.Open(imagePath)
	if err != nil {
		return "", err
	}
	final := imaging.Fill(img, n.canvasWidth, n.canvasHeight, imaging.Center, imaging.Lanczos)
	if err := imaging.Save(final, imagePath); err != nil {
		return "", err
	}
	return imagePath, nil
}

func (n *Normalizer) composeTextImage(ctx context.Context, text string) (string, error) {
	cardPath, err := n.renderTextCard(text)
	if err != nil {
		return "", err
	}

	backgroundPath, err := n.backgrounds.FindBackground(ctx, text)
	if err != nil {
		os.Remove(cardPath)
		return "", err
	}
	defer os.Remove(backgroundPath)

	backgroundImg, err := imaging.Open(backgroundPath)
	if err != nil {
		os.Remove(cardPath)
		return "", err
	}
	background := imaging.Fill(backgroundImg, n.canvasWidth, n.canvasHeight, imaging.Center, imaging.Lanczos)
	background = imaging.Blur(background, backgroundBlurSigma)

	card, err := imaging.Open(cardPath)
	if err != nil {
		os.Remove(cardPath)
		return "", err
	}
	// Object-fit contain: the card keeps its aspect ratio inside the canvas.
	fitted := imaging.Fit(card, n.canvasWidth, n.canvasHeight, imaging.Lanczos)
	composed := imaging.OverlayCenter(background, fitted, 1.0)

	if err := imaging.Save(composed, cardPath); err != nil {
		os.Remove(cardPath)
		return "", err
	}
	return cardPath, nil
}

// renderTextCard draws word-wrapped text on a fixed-width canvas whose
// height follows the line count. Explicit newlines are hard breaks.
func (n *Normalizer) renderTextCard(text string) (string, error) {
	measure := gg.NewContext(1, 1)
	if err := measure.LoadFontFace(n.fontPath, cardFontSize); err != nil {
		log.Printf("error loading font face %s: %s", n.fontPath, err)
		return "", err
	}

	textWidth := float64(n.canvasWidth) - 2.3*cardPadding
	lines := wrapParagraphs(measure, text, textWidth)

	height := int(float64(len(lines))*cardLineHeight + 2*cardPadding)
	dc := gg.NewContext(n.canvasWidth, height)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	if err := dc.LoadFontFace(n.fontPath, cardFontSize); err != nil {
		return "", err
	}
	dc.SetRGB(1, 1, 1)

	y := cardPadding + cardFontSize
	for _, line := range lines {
		dc.DrawString(line, cardPadding, y)
		y += cardLineHeight
	}

	outPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s.png", uuid.New().String()))
	if err := dc.SavePNG(outPath); err != nil {
		return "", err
	}
	return outPath, nil
}

func wrapParagraphs(dc *gg.Context, text string, width float64) []string {
	lines := []string{}
	for _, paragraph := range strings.Split(text, "\n") {
		if strings.TrimSpace(paragraph) == "" {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, dc.WordWrap(paragraph, width)...)
	}
	return lines
}
