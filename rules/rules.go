// Package rules evaluates Sigma rules against progress reports, so operators
// can be alerted on conditions such as missed events or a low useful ratio.
package rules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bradleyjkemp/sigma-go"
	"github.com/bradleyjkemp/sigma-go/evaluator"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Detector holds the rules loaded from a directory and reloads them when the
// directory changes.
type Detector struct {
	RulesDir string
	log      logrus.FieldLogger

	mu         sync.RWMutex
	evaluators map[string]*evaluator.RuleEvaluator

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Match is a rule that matched an event.
type Match struct {
	Rule       sigma.Rule
	Conditions []string
}

// NewDetector loads the rules in rulesDir and starts watching it.
func NewDetector(rulesDir string, log logrus.FieldLogger) (*Detector, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %v", err)
	}

	d := &Detector{
		RulesDir:   rulesDir,
		log:        log,
		evaluators: make(map[string]*evaluator.RuleEvaluator),
		watcher:    watcher,
		done:       make(chan struct{}),
	}

	if err := d.LoadRules(); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	if err := watcher.Add(rulesDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %v", rulesDir, err)
	}
	go d.watchFileChanges()

	return d, nil
}

func isRuleFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yml" || ext == ".yaml"
}

func (d *Detector) watchFileChanges() {
	defer close(d.done)
	for {
		select {
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if !isRuleFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				d.log.Debugf("detected rule change: %s", event.Name)
				if err := d.LoadRules(); err != nil {
					d.log.Errorf("failed to reload rules: %v", err)
				}
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.log.Errorf("file watcher error: %v", err)
		}
	}
}

// LoadRules replaces the loaded rules with the rule files in RulesDir. Files
// that fail to parse are skipped with a warning.
func (d *Detector) LoadRules() error {
	entries, err := os.ReadDir(d.RulesDir)
	if err != nil {
		return err
	}

	evaluators := make(map[string]*evaluator.RuleEvaluator)
	for _, entry := range entries {
		if entry.IsDir() || !isRuleFile(entry.Name()) {
			continue
		}
		path := filepath.Join(d.RulesDir, entry.Name())
		rule, err := loadRuleFile(path)
		if err != nil {
			d.log.Warnf("failed to load rule file %s: %v", path, err)
			continue
		}
		key := rule.ID
		if key == "" {
			key = path
		}
		evaluators[key] = evaluator.ForRule(rule)
	}

	d.mu.Lock()
	d.evaluators = evaluators
	d.mu.Unlock()

	d.log.Infof("loaded %d rules from %s", len(evaluators), d.RulesDir)
	return nil
}

func loadRuleFile(path string) (sigma.Rule, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return sigma.Rule{}, err
	}
	if sigma.InferFileType(content) != sigma.RuleFile {
		return sigma.Rule{}, fmt.Errorf("file is not a Sigma rule: %s", path)
	}
	return sigma.ParseRule(content)
}

// Len returns the number of loaded rules.
func (d *Detector) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.evaluators)
}

// CheckEvent returns the rules matching event, ordered by rule ID.
func (d *Detector) CheckEvent(ctx context.Context, event map[string]interface{}) []Match {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var matches []Match
	for id, ev := range d.evaluators {
		result, err := ev.Matches(ctx, event)
		if err != nil {
			d.log.Warnf("failed to evaluate rule %s: %v", id, err)
			continue
		}
		if !result.Match {
			continue
		}
		var conditions []string
		for k, v := range result.SearchResults {
			if v {
				conditions = append(conditions, k)
			}
		}
		sort.Strings(conditions)
		matches = append(matches, Match{Rule: ev.Rule, Conditions: conditions})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Rule.ID < matches[j].Rule.ID })
	return matches
}

func (m Match) String() string {
	return fmt.Sprintf("rule %q (%s) matched: %s", m.Rule.Title, m.Rule.Level, strings.Join(m.Conditions, ", "))
}

// Close stops watching the rules directory.
func (d *Detector) Close() error {
	err := d.watcher.Close()
	<-d.done
	return err
}
