// keywordnet.go KeywordNet model specific code
package keyword

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	tflite "github.com/tphakala/go-tflite"
	"github.com/tphakala/voicebot-go/internal/conf"
	"github.com/tphakala/voicebot-go/internal/errors"
)

// KeywordNet runs a TensorFlow Lite keyword spotting model. It implements the
// Classifier interface.
type KeywordNet struct {
	interpreter *tflite.Interpreter
	labels      []string
	frameSize   int
	input       []float32 // scratch buffer for pulled samples
	mu          sync.Mutex
}

// NewKeywordNet loads the model and label file named in the settings and
// prepares an interpreter for inference.
func NewKeywordNet(settings *conf.Settings) (*KeywordNet, error) {
	kn := &KeywordNet{}

	if err := kn.initializeModel(settings); err != nil {
		return nil, errors.New(fmt.Errorf("KeywordNet: failed to initialize model: %w", err)).
			Component("keyword").
			Category(errors.CategoryModelInit).
			Context("model_path", settings.Keyword.ModelPath).
			Build()
	}

	if err := kn.loadLabels(settings.Keyword.LabelPath); err != nil {
		return nil, errors.New(fmt.Errorf("KeywordNet: failed to load labels: %w", err)).
			Component("keyword").
			Category(errors.CategoryLabelLoad).
			Context("label_path", settings.Keyword.LabelPath).
			Build()
	}

	outputSize := kn.outputSize()
	if outputSize != len(kn.labels) {
		return nil, errors.Newf("KeywordNet: model has %d outputs but label file has %d labels", outputSize, len(kn.labels)).
			Component("keyword").
			Category(errors.CategoryLabelLoad).
			Context("label_path", settings.Keyword.LabelPath).
			Build()
	}

	return kn, nil
}

func (kn *KeywordNet) initializeModel(settings *conf.Settings) error {
	modelData, err := os.ReadFile(settings.Keyword.ModelPath)
	if err != nil {
		return errors.New(err).
			Component("keyword").
			Category(errors.CategoryModelLoad).
			Context("model_path", settings.Keyword.ModelPath).
			Build()
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return fmt.Errorf("cannot load TensorFlow Lite model from %s", settings.Keyword.ModelPath)
	}

	threads := settings.Keyword.Threads
	if threads < 1 {
		threads = runtime.NumCPU()
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)

	kn.interpreter = tflite.NewInterpreter(model, options)
	if kn.interpreter == nil {
		return fmt.Errorf("cannot create interpreter")
	}
	if status := kn.interpreter.AllocateTensors(); status != tflite.OK {
		return fmt.Errorf("tensor allocation failed")
	}

	kn.frameSize = kn.inputSize()
	kn.input = make([]float32, kn.frameSize)

	// The model data is no longer needed, TFLite has created its own internal copy
	runtime.GC()

	return nil
}

// inputSize returns the flat input tensor size, batch dimension excluded.
func (kn *KeywordNet) inputSize() int {
	tensor := kn.interpreter.GetInputTensor(0)
	size := 1
	for i := 0; i < tensor.NumDims(); i++ {
		if i == 0 && tensor.Dim(i) == 1 {
			continue // batch dimension
		}
		size *= tensor.Dim(i)
	}
	return size
}

// outputSize returns the number of entries in the output tensor.
func (kn *KeywordNet) outputSize() int {
	tensor := kn.interpreter.GetOutputTensor(0)
	return tensor.Dim(tensor.NumDims() - 1)
}

func (kn *KeywordNet) loadLabels(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close() //nolint:errcheck

	kn.labels = nil
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		kn.labels = append(kn.labels, line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if len(kn.labels) == 0 {
		return fmt.Errorf("label file %s contains no labels", path)
	}
	return nil
}

// FrameSamples returns the input frame size the model was built for.
func (kn *KeywordNet) FrameSamples() int {
	return kn.frameSize
}

// Labels returns the model labels in output order.
func (kn *KeywordNet) Labels() []string {
	return kn.labels
}

// Classify pulls one frame of samples from the source and runs inference.
func (kn *KeywordNet) Classify(src SampleSource) (Result, error) {
	kn.mu.Lock()
	defer kn.mu.Unlock()

	start := time.Now()

	if src.Samples() != kn.frameSize {
		return Result{}, errors.Newf("sample source holds %d samples, model expects %d", src.Samples(), kn.frameSize).
			Component("keyword").
			Category(errors.CategoryValidation).
			Build()
	}

	if err := src.ReadFloats(0, kn.input); err != nil {
		return Result{}, err
	}

	inputTensor := kn.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return Result{}, errors.Newf("cannot get input tensor").
			Component("keyword").
			Category(errors.CategoryAudioAnalysis).
			Build()
	}
	copy(inputTensor.Float32s(), kn.input)

	if status := kn.interpreter.Invoke(); status != tflite.OK {
		return Result{}, errors.Newf("tensor invoke failed: %v", status).
			Component("keyword").
			Category(errors.CategoryAudioAnalysis).
			Build()
	}

	outputTensor := kn.interpreter.GetOutputTensor(0)
	confidences := outputTensor.Float32s()

	predictions := make([]Prediction, len(kn.labels))
	for i, label := range kn.labels {
		predictions[i] = Prediction{Label: label, Confidence: confidences[i]}
	}

	return Result{
		Predictions: predictions,
		ElapsedTime: time.Since(start),
	}, nil
}

// Close releases the interpreter.
func (kn *KeywordNet) Close() error {
	kn.mu.Lock()
	defer kn.mu.Unlock()
	if kn.interpreter != nil {
		kn.interpreter.Delete()
		kn.interpreter = nil
	}
	return nil
}
