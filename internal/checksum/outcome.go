package checksum

// Outcome is the result of comparing a calculated digest with the expected one.
type Outcome struct {
	// Expected is the configured digest, possibly empty.
	Expected string
	// Calculated is the digest computed over the downloaded file.
	Calculated string
	// Match is true when the digests are equal or validation was skipped.
	Match bool
	// Skipped is true when no expected digest was configured.
	Skipped bool
}

// Compare checks calculated against expected with exact string equality.
// An empty expected value always matches.
func Compare(expected, calculated string) Outcome {
	if expected == "" {
		return Outcome{
			Calculated: calculated,
			Match:      true,
			Skipped:    true,
		}
	}

	return Outcome{
		Expected:   expected,
		Calculated: calculated,
		Match:      expected == calculated,
	}
}
