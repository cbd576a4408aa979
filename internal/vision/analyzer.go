package vision

import (
	"bytes"
	"encoding/base64"
	"image"
	"log"
	"math"
	"sort"
	"strings"

	_ "image/jpeg"
	_ "image/png"
)

// DetectedDevice is an automation opportunity spotted in a room photo.
type DetectedDevice struct {
	Name                string          `json:"name"`
	Confidence          float64         `json:"confidence"`
	Type                string          `json:"type"`
	AutomationPotential string          `json:"automation_potential"`
	Box                 image.Rectangle `json:"-"`
}

// Analysis is the full result of a room photo scan.
type Analysis struct {
	RoomType       string           `json:"room_type"`
	Confidence     float64          `json:"confidence"`
	Dimensions     [2]float64       `json:"dimensions"`
	Lighting       string           `json:"lighting"`
	Devices        []DetectedDevice `json:"devices"`
	Suggestions    []string         `json:"suggestions"`
	AnnotatedImage string           `json:"annotated_image"`
}

const (
	maxDetectedDevices = 5
	maxSuggestions     = 8
)

type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze accepts a base64 or data-URL encoded photo and returns automation
// recommendations. It never fails: undecodable input degrades to an
// "unknown" analysis with a retry suggestion.
func (a *Analyzer) Analyze(imageData string) *Analysis {
	img, err := decodeImage(imageData)
	if err != nil {
		log.Printf("[Vision] Failed to decode image: %v", err)
		return &Analysis{
			RoomType:    "unknown",
			Lighting:    "unknown",
			Devices:     []DetectedDevice{},
			Suggestions: []string{"Unable to analyze image. Please try uploading a clearer photo."},
		}
	}

	stats := computeStats(img)

	roomType, confidence := classifyRoom(stats)
	width, height := estimateDimensions(img.Bounds())
	lighting := describeLighting(stats.meanLuminance)
	devices := detectDevices(stats)
	suggestions := buildSuggestions(roomType, devices, lighting)

	analysis := &Analysis{
		RoomType:    roomType,
		Confidence:  confidence,
		Dimensions:  [2]float64{width, height},
		Lighting:    lighting,
		Devices:     devices,
		Suggestions: suggestions,
	}
	analysis.AnnotatedImage = annotate(imageData, img, analysis)
	return analysis
}

func decodeImage(imageData string) (image.Image, error) {
	// Accept both raw base64 and data URLs ("data:image/png;base64,...")
	if idx := strings.Index(imageData, ","); idx >= 0 {
		imageData = imageData[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(imageData)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	return img, err
}

// imageStats holds per-channel color statistics plus a luminance grid used
// for contrast-based detection.
type imageStats struct {
	meanR, meanG, meanB float64
	variance            float64
	meanLuminance       float64
	luminance           []float64
	width, height       int
}

func computeStats(img image.Image) *imageStats {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	stats := &imageStats{
		luminance: make([]float64, w*h),
		width:     w,
		height:    h,
	}

	var sumR, sumG, sumB, sumLum float64
	var sumSqR, sumSqG, sumSqB float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			fr := float64(r >> 8)
			fg := float64(g >> 8)
			fb := float64(b >> 8)
			sumR += fr
			sumG += fg
			sumB += fb
			sumSqR += fr * fr
			sumSqG += fg * fg
			sumSqB += fb * fb
			lum := 0.299*fr + 0.587*fg + 0.114*fb
			sumLum += lum
			stats.luminance[y*w+x] = lum
		}
	}

	n := float64(w * h)
	stats.meanR = sumR / n
	stats.meanG = sumG / n
	stats.meanB = sumB / n
	stats.meanLuminance = sumLum / n

	varR := sumSqR/n - stats.meanR*stats.meanR
	varG := sumSqG/n - stats.meanG*stats.meanG
	varB := sumSqB/n - stats.meanB*stats.meanB
	stats.variance = (varR + varG + varB) / 3
	return stats
}

func classifyRoom(stats *imageStats) (string, float64) {
	if stats.meanR > 200 && stats.meanG > 200 && stats.meanB > 200 {
		// Bright, white-dominated space
		if stats.variance < 500 {
			return "bathroom", 0.7
		}
		return "kitchen", 0.6
	}
	if (stats.meanR+stats.meanG+stats.meanB)/3 < 100 {
		// Dark space
		return "bedroom", 0.5
	}
	return "living_room", 0.6
}

// estimateDimensions maps the photo's aspect ratio onto typical room sizes
// in meters.
func estimateDimensions(bounds image.Rectangle) (float64, float64) {
	aspect := float64(bounds.Dx()) / float64(bounds.Dy())
	switch {
	case aspect > 1.5:
		return 5.0, 3.5
	case aspect < 0.8:
		return 3.0, 4.0
	default:
		return 4.0, 4.0
	}
}

func describeLighting(meanBrightness float64) string {
	switch {
	case meanBrightness > 180:
		return "Very Bright - May benefit from smart blinds"
	case meanBrightness > 120:
		return "Well Lit - Good for automation"
	case meanBrightness > 60:
		return "Moderate - Could use additional smart lighting"
	default:
		return "Dark - Needs smart lighting solutions"
	}
}

const (
	contrastBlockSize = 16
	contrastThreshold = 40.0
)

// detectDevices finds high-contrast rectangular regions and classifies them
// by aspect ratio and area as switches, control panels or windows.
func detectDevices(stats *imageStats) []DetectedDevice {
	blocksW := stats.width / contrastBlockSize
	blocksH := stats.height / contrastBlockSize
	if blocksW == 0 || blocksH == 0 {
		return []DetectedDevice{}
	}

	// Flag blocks whose luminance spread exceeds the threshold
	high := make([]bool, blocksW*blocksH)
	for by := 0; by < blocksH; by++ {
		for bx := 0; bx < blocksW; bx++ {
			if blockStdDev(stats, bx, by) > contrastThreshold {
				high[by*blocksW+bx] = true
			}
		}
	}

	devices := []DetectedDevice{}
	visited := make([]bool, len(high))
	for i := range high {
		if !high[i] || visited[i] {
			continue
		}
		box := growRegion(high, visited, i, blocksW, blocksH)
		if device, ok := classifyRegion(box); ok {
			devices = append(devices, device)
		}
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Confidence > devices[j].Confidence
	})
	if len(devices) > maxDetectedDevices {
		devices = devices[:maxDetectedDevices]
	}
	return devices
}

func blockStdDev(stats *imageStats, bx, by int) float64 {
	var sum, sumSq float64
	for y := by * contrastBlockSize; y < (by+1)*contrastBlockSize; y++ {
		for x := bx * contrastBlockSize; x < (bx+1)*contrastBlockSize; x++ {
			lum := stats.luminance[y*stats.width+x]
			sum += lum
			sumSq += lum * lum
		}
	}
	n := float64(contrastBlockSize * contrastBlockSize)
	mean := sum / n
	return math.Sqrt(math.Max(0, sumSq/n-mean*mean))
}

// growRegion flood-fills the 4-connected high-contrast region containing
// block index start and returns its pixel bounding box.
func growRegion(high, visited []bool, start, blocksW, blocksH int) image.Rectangle {
	minX, minY := blocksW, blocksH
	maxX, maxY := 0, 0

	stack := []int{start}
	visited[start] = true
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		bx, by := idx%blocksW, idx/blocksW
		if bx < minX {
			minX = bx
		}
		if bx > maxX {
			maxX = bx
		}
		if by < minY {
			minY = by
		}
		if by > maxY {
			maxY = by
		}

		neighbors := [][2]int{{bx - 1, by}, {bx + 1, by}, {bx, by - 1}, {bx, by + 1}}
		for _, n := range neighbors {
			nx, ny := n[0], n[1]
			if nx < 0 || ny < 0 || nx >= blocksW || ny >= blocksH {
				continue
			}
			nidx := ny*blocksW + nx
			if high[nidx] && !visited[nidx] {
				visited[nidx] = true
				stack = append(stack, nidx)
			}
		}
	}

	return image.Rect(
		minX*contrastBlockSize,
		minY*contrastBlockSize,
		(maxX+1)*contrastBlockSize,
		(maxY+1)*contrastBlockSize,
	)
}

func classifyRegion(box image.Rectangle) (DetectedDevice, bool) {
	w, h := box.Dx(), box.Dy()
	area := w * h
	if area < 100 || area > 50000 {
		return DetectedDevice{}, false
	}
	aspect := float64(w) / float64(h)

	switch {
	case aspect > 0.3 && aspect < 0.7 && area > 1000 && area < 5000:
		return DetectedDevice{
			Name:                "Light Switch",
			Confidence:          0.6,
			Type:                "switch",
			AutomationPotential: "High - Replace with smart switch (£20-50)",
			Box:                 box,
		}, true
	case aspect > 0.8 && aspect < 1.2 && area > 2000 && area < 8000:
		return DetectedDevice{
			Name:                "Control Panel/Thermostat",
			Confidence:          0.5,
			Type:                "control",
			AutomationPotential: "High - Upgrade to smart thermostat (£120-200)",
			Box:                 box,
		}, true
	case aspect > 2 && area > 10000:
		return DetectedDevice{
			Name:                "Window",
			Confidence:          0.4,
			Type:                "window",
			AutomationPotential: "Medium - Add smart blinds (£150-300)",
			Box:                 box,
		}, true
	}
	return DetectedDevice{}, false
}

var roomSuggestions = map[string][]string{
	"kitchen": {
		"Install smart smoke detector (£30-50)",
		"Add smart leak sensors under sink (£20 each)",
		"Smart coffee maker for morning automation (£150-200)",
		"Smart plugs for appliances (£15 each)",
	},
	"living_room": {
		"Smart TV integration for entertainment control",
		"Smart speakers for voice control (£50-100)",
		"Smart lighting scenes for different activities",
		"Smart thermostat for comfort optimization (£120-200)",
	},
	"bedroom": {
		"Smart sleep tracking and environment optimization",
		"Automated blackout curtains (£200-400)",
		"Smart alarm clock with gradual wake lighting",
		"Air quality monitoring (£100-150)",
	},
	"bathroom": {
		"Smart ventilation fan with humidity control (£80-120)",
		"Leak detection sensors (£20 each)",
		"Smart mirror with lighting (£200-500)",
		"Automated towel warmer (£100-200)",
	},
	"office": {
		"Smart lighting for productivity (£100-200)",
		"Air quality monitoring for focus (£100-150)",
		"Smart desk setup with automated height adjustment",
		"Security camera for monitoring (£50-150)",
	},
}

var generalSuggestions = []string{
	"Smart motion sensors for automated lighting (£15-25 each)",
	"Smart plugs for energy monitoring (£15 each)",
	"Voice assistant for central control (£30-100)",
}

func buildSuggestions(roomType string, devices []DetectedDevice, lighting string) []string {
	var suggestions []string

	if room, ok := roomSuggestions[roomType]; ok {
		suggestions = append(suggestions, room[:3]...)
	}
	for _, device := range devices {
		suggestions = append(suggestions, device.AutomationPotential)
	}
	if strings.Contains(lighting, "Dark") {
		suggestions = append(suggestions, "Install smart LED strips for ambient lighting (£30-60)")
	} else if strings.Contains(lighting, "Very Bright") {
		suggestions = append(suggestions, "Add smart blinds for light control (£150-300)")
	}
	suggestions = append(suggestions, generalSuggestions...)

	seen := make(map[string]bool, len(suggestions))
	unique := suggestions[:0]
	for _, s := range suggestions {
		if !seen[s] {
			seen[s] = true
			unique = append(unique, s)
		}
	}
	if len(unique) > maxSuggestions {
		unique = unique[:maxSuggestions]
	}
	return unique
}
