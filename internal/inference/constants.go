package inference

// Model geometry fixed by how the network was trained.
const (
	SampleRate        = 22050
	FFTHop            = 256
	AnnotationsFPS    = SampleRate / FFTHop // 86, integer division
	AudioWindowLength = 2                   // seconds
	AudioNSamples     = SampleRate*AudioWindowLength - FFTHop
	AnnotNFrames      = AnnotationsFPS * AudioWindowLength

	NOverlappingFrames = 30
	OverlapLen         = NOverlappingFrames * FFTHop
	HopSize            = AudioNSamples - OverlapLen

	NFreqBinsNotes          = 88
	ContoursBinsPerSemitone = 3
	NFreqBinsContours       = NFreqBinsNotes * ContoursBinsPerSemitone
)

// Graph tensor names of the exported model.
const (
	InputName   = "serving_default_input_2:0"
	NoteName    = "StatefulPartitionedCall:1"
	OnsetName   = "StatefulPartitionedCall:2"
	ContourName = "StatefulPartitionedCall:0"
)

// DefaultBatchSize is the number of windows per session run.
const DefaultBatchSize = 8
