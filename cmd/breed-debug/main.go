// Command breed-debug prints every intermediate of one breeding event, for
// checking a single nonce by hand.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/MJE43/mogwai-breed-go/internal/breed"
	"github.com/MJE43/mogwai-breed-go/internal/engine"
	"github.com/MJE43/mogwai-breed-go/internal/genetic"
)

func main() {
	var (
		dna1       = flag.String("dna1", "00112233445566778899aabbccddeeff", "parent 1 segment (32 hex chars)")
		dna2       = flag.String("dna2", "ffeeddccbbaa99887766554433221100", "parent 2 segment (32 hex chars)")
		gen1       = flag.Int("gen1", 1, "parent 1 generation")
		gen2       = flag.Int("gen2", 1, "parent 2 generation")
		rar1       = flag.String("rarity1", "Minor", "parent 1 rarity")
		rar2       = flag.String("rarity2", "Minor", "parent 2 rarity")
		breedType  = flag.String("breed-type", "", "pairing strategy; empty picks nonce % 4")
		entropyHex = flag.String("entropy", "", "raw entropy (64 hex chars); overrides seeds")
		server     = flag.String("server", "debug_server", "server seed")
		client     = flag.String("client", "debug_client", "client seed")
		nonce      = flag.Uint64("nonce", 1, "nonce")
		scheme     = flag.String("scheme", string(engine.SchemeHMAC), "entropy scheme")
	)
	flag.Parse()

	if err := run(*dna1, *dna2, *gen1, *gen2, *rar1, *rar2, *breedType, *entropyHex,
		engine.Seeds{Server: *server, Client: *client}, *nonce, *scheme); err != nil {
		fmt.Fprintf(os.Stderr, "breed-debug: %v\n", err)
		os.Exit(1)
	}
}

func parent(dna string, gen int, rarity string) (breed.Parent, error) {
	seg, err := genetic.ParseSegment(dna)
	if err != nil {
		return breed.Parent{}, err
	}
	r, err := genetic.ParseRarity(rarity)
	if err != nil {
		return breed.Parent{}, err
	}
	return breed.Parent{DNA: seg, Generation: gen, Rarity: r}, nil
}

func run(dna1, dna2 string, gen1, gen2 int, rar1, rar2, breedType, entropyHex string,
	seeds engine.Seeds, nonce uint64, schemeName string) error {
	p1, err := parent(dna1, gen1, rar1)
	if err != nil {
		return fmt.Errorf("parent 1: %w", err)
	}
	p2, err := parent(dna2, gen2, rar2)
	if err != nil {
		return fmt.Errorf("parent 2: %w", err)
	}

	var entropy genetic.Entropy
	if entropyHex != "" {
		if entropy, err = genetic.ParseEntropy(entropyHex); err != nil {
			return fmt.Errorf("entropy: %w", err)
		}
	} else {
		scheme, err := engine.ParseScheme(schemeName)
		if err != nil {
			return err
		}
		entropy = engine.Entropy(scheme, seeds, nonce)
		fmt.Printf("Scheme:      %s\n", scheme)
		fmt.Printf("Seed hash:   %s\n", engine.HashSeed(seeds.Server))
		fmt.Printf("Nonce:       %d\n", nonce)
	}

	bt := genetic.BreedTypeForNonce(nonce)
	if breedType != "" {
		if bt, err = genetic.ParseBreedType(breedType); err != nil {
			return err
		}
	}

	o := breed.Breed(bt, p1, p2, entropy)
	fmt.Printf("Entropy:     %s\n", entropy)
	fmt.Printf("Breed type:  %s\n", bt)
	fmt.Printf("Genome:      %s\n", o.Genome)
	fmt.Printf("DNA:         %s\n", o.DNA)
	fmt.Printf("Evolution:   %s\n", o.Evolution)
	fmt.Printf("Generation:  %d\n", o.Generation)
	fmt.Printf("Rarity:      %s\n", o.Rarity)

	traits := breed.MeasureAll(o)
	ids := make([]string, 0, len(traits))
	for id := range traits {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Println("\nTraits:")
	for _, id := range ids {
		fmt.Printf("  %-15s %g\n", id, traits[id])
	}
	return nil
}
