package sealevel

import (
	"errors"
	"fmt"

	"github.com/Overclock-Validator/solfuzz/pkg/accounts"
	"github.com/samber/lo"
	"k8s.io/klog/v2"
)

// Commit writes the writable views of a successful instruction back to the
// store. Closed accounts are removed; read-only views are never written.
func Commit(store accounts.Accounts, infos []*AccountInfo) error {
	for _, info := range lo.Uniq(infos) {
		if !info.IsWritable() {
			continue
		}

		key := info.Key()
		if info.IsClosed() {
			err := store.RemoveAccount(key)
			if err != nil && !errors.Is(err, accounts.ErrAccountNotFound) {
				return fmt.Errorf("removing closed account %s: %w", key, err)
			}
			klog.V(2).Infof("evicted closed account %s", key)
			continue
		}

		if err := store.SetAccount(key, info.Account()); err != nil {
			return fmt.Errorf("committing account %s: %w", key, err)
		}
	}
	return nil
}
