package variant

// Variant names a system instruction that, applied to the same underlying
// records, produces a distinct training corpus.
type Variant struct {
	Name   string `yaml:"name"`
	System string `yaml:"system"`
}

// All is the variant selector that expands to every known variant.
const All = "all"

const genSystem = `A conversation between User and Assistant. The User asks a question about a person's health based on their wearable sensor readings, and the Assistant answers it. The Assistant first thinks about the reasoning process in the mind and then provides the User with the answer. The reasoning process is enclosed within <think> </think> tags and the answer is enclosed within <answer> </answer> tags, i.e., <think> reasoning process here </think> <answer> answer here </answer>.`

const tacSystem = `A conversation between User and Assistant. The User asks a question about a person's health based on their wearable sensor readings, and the Assistant answers it. The Assistant first thinks about the reasoning process in the mind and then provides the User with the answer. After giving the answer, the Assistant states how confident it is that the answer is correct, as a probability between 0 and 1. The reasoning process is enclosed within <think> </think> tags, the answer within <answer> </answer> tags, and the confidence within <confidence> </confidence> tags, i.e., <think> reasoning process here </think> <answer> answer here </answer> <confidence> confidence here </confidence>.`

const tabcSystem = `A conversation between User and Assistant. The User asks a question about a person's health based on their wearable sensor readings, and the Assistant answers it. The Assistant first thinks about the reasoning process in the mind and then provides the User with the answer. After giving the answer, the Assistant reflects on the evidence for and against the answer, and then states how confident it is that the answer is correct, as a probability between 0 and 1. The reasoning process is enclosed within <think> </think> tags, the answer within <answer> </answer> tags, the reflection within <analysis> </analysis> tags, and the confidence within <confidence> </confidence> tags, i.e., <think> reasoning process here </think> <answer> answer here </answer> <analysis> reflection here </analysis> <confidence> confidence here </confidence>.`

const tabcLongSystem = `A conversation between User and Assistant. The User asks a question about a person's health based on their wearable sensor readings, and the Assistant answers it. The Assistant first thinks carefully about the reasoning process in the mind: it considers each sensor signal in turn, how the signals relate to the quantity being predicted, and which signals are most informative for this person. It then provides the User with the answer. After giving the answer, the Assistant writes an honest reflection: it lists the strongest evidence supporting the answer, the strongest evidence against it, and any plausible alternative answers it considered. Finally the Assistant states how confident it is that the answer is correct, as a calibrated probability between 0 and 1, where 0 means certainly wrong and 1 means certainly right. The reasoning process is enclosed within <think> </think> tags, the answer within <answer> </answer> tags, the reflection within <analysis> </analysis> tags, and the confidence within <confidence> </confidence> tags, i.e., <think> reasoning process here </think> <answer> answer here </answer> <analysis> reflection here </analysis> <confidence> confidence here </confidence>.`

// Builtin returns the compiled-in variants in their canonical order.
func Builtin() []Variant {
	return []Variant{
		{Name: "gen", System: genSystem},
		{Name: "tac", System: tacSystem},
		{Name: "tabc", System: tabcSystem},
		{Name: "tabc_long", System: tabcLongSystem},
	}
}
